package classify

import "github.com/alvmarrod/label-weaver/internal/label"

// Interim reconciles the Wikipedia keyword signal.
type Interim struct {
	// UnderThreshold bounds the keyword sum under which an independent link wins.
	UnderThreshold float64
	// OverThreshold is the keyword sum above which the top category wins.
	OverThreshold float64
}

// Classify decides from the aggregated Wikipedia signal. Ties stay pending.
func (i Interim) Classify(sig label.WikipediaSignal) label.Classification {
	sum := sig.Keywords.Total()
	if sig.IndependentLink && sum <= i.UnderThreshold {
		return label.Final(label.Independent)
	}
	if sum > i.OverThreshold {
		if c, ok := sig.Keywords.Argmax(); ok {
			return label.Final(c)
		}
	}
	return label.Pending()
}

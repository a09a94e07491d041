package label

// Keywords holds per-category keyword weights indexed by KeywordClasses.
type Keywords [len(KeywordClasses)]float64

// Get returns the weight for a keyword class. Unknown has no weight.
func (k Keywords) Get(c Class) float64 {
	if c < 0 || int(c) >= len(k) {
		return 0
	}
	return k[c]
}

// Total sums all categories.
func (k Keywords) Total() float64 {
	var sum float64
	for _, v := range k {
		sum += v
	}
	return sum
}

// Add returns k + o*weight.
func (k Keywords) Add(o Keywords, weight float64) Keywords {
	for i := range k {
		k[i] += o[i] * weight
	}
	return k
}

// Argmax returns the category with the strictly highest weight among
// candidates. ok is false on a tie for the top or when every weight is zero.
func (k Keywords) Argmax(candidates ...Class) (Class, bool) {
	if len(candidates) == 0 {
		candidates = KeywordClasses[:]
	}
	best, bestVal, tie := Class(0), -1.0, false
	for _, c := range candidates {
		v := k.Get(c)
		switch {
		case v > bestVal:
			best, bestVal, tie = c, v, false
		case v == bestVal:
			tie = true
		}
	}
	if tie || bestVal <= 0 {
		return 0, false
	}
	return best, true
}

// DiscogsSignal is what the Discogs crawl recorded for an entry.
type DiscogsSignal struct {
	Keywords Keywords
	CrossRef string
}

// WikipediaSignal is what the Wikipedia crawl recorded for an entry.
type WikipediaSignal struct {
	Keywords        Keywords
	URL             string
	IndependentLink bool
}

// Entry is one row of the label table.
type Entry struct {
	Name        string
	Occurrences int
	Classes     [StageCount]Classification

	Discogs   DiscogsSignal
	Wikipedia WikipediaSignal

	CopyrightP string
	CopyrightC string
	// CopyrightConflict holds the copyright-derived class when it disagreed
	// with an earlier terminal decision.
	CopyrightConflict Classification
}

// Get returns the classification recorded for stage.
func (e *Entry) Get(stage Stage) Classification {
	return e.Classes[stage]
}

// Set records a classification for stage.
func (e *Entry) Set(stage Stage, c Classification) {
	e.Classes[stage] = c
}

// Major is the final-stage classification.
func (e *Entry) Major() Classification {
	return e.Classes[StageFinal]
}

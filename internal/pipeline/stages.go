package pipeline

import (
	"context"

	"github.com/alvmarrod/label-weaver/internal/classify"
	"github.com/alvmarrod/label-weaver/internal/crawler"
	"github.com/alvmarrod/label-weaver/internal/label"
	"github.com/sirupsen/logrus"
)

// Processor computes one stage column for a single entry.
type Processor interface {
	Stage() label.Stage
	// Wants reports whether the entry still needs this stage.
	Wants(e *label.Entry) bool
	// Process writes the stage column. Errors are reserved for cancellation.
	Process(ctx context.Context, e *label.Entry) error
}

// preparer is implemented by processors that amend the table before the
// first row is visited.
type preparer interface {
	Prepare(t *label.Table) error
}

// conflictReporter is implemented by processors that detect disagreements.
type conflictReporter interface {
	Conflicted(e *label.Entry) bool
}

// TrivialStage applies the alias rules to every row.
type TrivialStage struct{}

func (TrivialStage) Stage() label.Stage { return label.StageTrivial }

func (TrivialStage) Wants(*label.Entry) bool { return true }

func (TrivialStage) Process(_ context.Context, e *label.Entry) error {
	e.Set(label.StageTrivial, classify.Trivial(e.Name))
	return nil
}

// CrawlStage resolves unresolved rows against one corpus.
type CrawlStage struct {
	Crawler *crawler.Crawler
	// URL renders an identifier as a page address, optional.
	URL func(id string) string
}

func (s CrawlStage) Stage() label.Stage { return s.Crawler.Source().Stage() }

// Wants selects pending rows and rows whose lookup failed on the network
// in an earlier run.
func (s CrawlStage) Wants(e *label.Entry) bool {
	cell := e.Get(s.Stage())
	if cell.IsPending() {
		return true
	}
	f, _, ok := cell.Flag()
	return ok && f == label.FlagConnection
}

func (s CrawlStage) Process(ctx context.Context, e *label.Entry) error {
	stage := s.Stage()
	crossRef := ""
	if stage == label.StageWikipedia {
		crossRef = e.Discogs.CrossRef
	}

	node, err := s.Crawler.Classify(ctx, e.Name, crossRef)
	if err != nil {
		return err
	}

	switch stage {
	case label.StageDiscogs:
		e.Discogs = label.DiscogsSignal{
			Keywords: s.Crawler.AggregateKeywords(node),
			CrossRef: node.CrossRef,
		}
	case label.StageWikipedia:
		sig := label.WikipediaSignal{
			Keywords:        s.Crawler.AggregateKeywords(node),
			IndependentLink: s.Crawler.AggregateIndependent(node),
		}
		if node.Identifier != "" && s.URL != nil {
			sig.URL = s.URL(node.Identifier)
		}
		e.Wikipedia = sig
	}
	e.Set(stage, node.Class)
	return nil
}

// InterimStage settles rows from the Wikipedia signal.
type InterimStage struct {
	Rule classify.Interim
}

func (InterimStage) Stage() label.Stage { return label.StageInterim }

func (InterimStage) Wants(e *label.Entry) bool {
	return e.Get(label.StageInterim).IsPending()
}

func (s InterimStage) Process(_ context.Context, e *label.Entry) error {
	e.Set(label.StageInterim, s.Rule.Classify(e.Wikipedia))
	return nil
}

// CopyrightStage classifies rows from their release notices.
type CopyrightStage struct {
	Rule classify.Copyright
	// Notices is merged into the table before processing when non-nil.
	Notices map[string]label.Notice
}

func (CopyrightStage) Stage() label.Stage { return label.StageCopyright }

func (CopyrightStage) Wants(*label.Entry) bool { return true }

func (s CopyrightStage) Prepare(t *label.Table) error {
	if s.Notices == nil {
		return nil
	}
	matched := t.MergeNotices(s.Notices)
	logrus.WithField("stage", label.StageCopyright.String()).
		Infof("Merged copyright notices for %d of %d labels", matched, t.Len())
	return nil
}

func (s CopyrightStage) Process(_ context.Context, e *label.Entry) error {
	d := s.Rule.Decide(e.Get(label.StageCopyright), e.CopyrightP, e.CopyrightC)
	e.Set(label.StageCopyright, d.Class)
	e.CopyrightConflict = label.Pending()
	if d.Conflict {
		e.CopyrightConflict = label.Final(d.Derived)
		logrus.WithFields(logrus.Fields{
			"stage": label.StageCopyright.String(),
			"label": e.Name,
		}).Warnf("Copyright notice says %s, kept %s", d.Derived, d.Class)
	}
	return nil
}

func (CopyrightStage) Conflicted(e *label.Entry) bool {
	return !e.CopyrightConflict.IsPending()
}

// FinalStage arbitrates the last column.
type FinalStage struct {
	Rule classify.Final
}

func (FinalStage) Stage() label.Stage { return label.StageFinal }

func (FinalStage) Wants(*label.Entry) bool { return true }

func (s FinalStage) Process(_ context.Context, e *label.Entry) error {
	e.Set(label.StageFinal, s.Rule.Decide(e, e.Get(label.StageFinal)))
	return nil
}

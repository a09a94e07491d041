// Package pipeline runs the classification stages over a label table in
// fixed order, checkpointing the table and the crawl archive as it goes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/alvmarrod/label-weaver/internal/label"
	"github.com/sirupsen/logrus"
)

// AllFile is the combined output of a full run.
const AllFile = "label_map_all.csv"

// StageFile is where a single stage writes its table.
func StageFile(dataDir string, stage label.Stage) string {
	return filepath.Join(dataDir, fmt.Sprintf("label_map_%s.csv", stage))
}

// InputFile is the table a fresh run of stage reads. The trivial stage reads
// the raw label list instead.
func InputFile(dataDir, rawInput string, stage label.Stage) string {
	prev, ok := stage.Previous()
	if !ok {
		return rawInput
	}
	return StageFile(dataDir, prev)
}

// Recorder receives per-row outcomes.
type Recorder interface {
	RecordRow(stage label.Stage, result label.Classification)
	RecordSkip(stage label.Stage)
	RecordConflict(stage label.Stage)
	RecordCheckpoint()
}

// FlushFunc persists the crawl archive.
type FlushFunc func() error

// Driver runs stages sequentially over one table.
type Driver struct {
	processors   map[label.Stage]Processor
	flush        FlushFunc
	recorder     Recorder
	saveInterval int
	log          *logrus.Entry
}

// NewDriver creates a driver. flush and recorder may be nil.
func NewDriver(processors []Processor, saveInterval int, flush FlushFunc, recorder Recorder) *Driver {
	if saveInterval < 1 {
		saveInterval = 1
	}
	d := &Driver{
		processors:   make(map[label.Stage]Processor, len(processors)),
		flush:        flush,
		recorder:     recorder,
		saveInterval: saveInterval,
		log:          logrus.WithField("component", "pipeline"),
	}
	for _, p := range processors {
		d.processors[p.Stage()] = p
	}
	return d
}

// Reset clears a stage column.
func Reset(t *label.Table, stage label.Stage) {
	for _, e := range t.Entries() {
		e.Set(stage, label.Pending())
	}
}

// Carry copies every final class of the previous column into pending cells
// of stage. Flags are not carried, the stage decides afresh for those rows.
func Carry(t *label.Table, stage label.Stage) {
	prev, ok := stage.Previous()
	if !ok {
		return
	}
	for _, e := range t.Entries() {
		upstream := e.Get(prev)
		if upstream.IsFinal() && !e.Get(stage).IsFinal() {
			e.Set(stage, upstream)
		}
	}
}

// RunStage executes one stage and writes the table to out. Without resume
// the stage column is recomputed from the previous column.
func (d *Driver) RunStage(ctx context.Context, t *label.Table, stage label.Stage, resume bool, out string) error {
	p, ok := d.processors[stage]
	if !ok {
		return fmt.Errorf("no processor configured for stage %s", stage)
	}
	log := d.log.WithField("stage", stage.String())

	if !resume {
		Reset(t, stage)
	}
	Carry(t, stage)
	if prep, ok := p.(preparer); ok {
		if err := prep.Prepare(t); err != nil {
			return fmt.Errorf("prepare stage %s: %w", stage, err)
		}
	}
	conflicts, _ := p.(conflictReporter)

	log.Infof("Starting stage over %d labels (resume=%v)", t.Len(), resume)
	processed := 0
	for _, e := range t.Entries() {
		if err := ctx.Err(); err != nil {
			return d.interrupted(t, stage, out, err)
		}
		if !p.Wants(e) {
			d.skip(stage)
			continue
		}
		if err := p.Process(ctx, e); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return d.interrupted(t, stage, out, err)
			}
			return fmt.Errorf("stage %s on %q: %w", stage, e.Name, err)
		}
		processed++
		if d.recorder != nil {
			d.recorder.RecordRow(stage, e.Get(stage))
			if conflicts != nil && conflicts.Conflicted(e) {
				d.recorder.RecordConflict(stage)
			}
		}
		log.WithField("label", e.Name).Debugf("Classified as %q", e.Get(stage))

		if processed%d.saveInterval == 0 {
			if err := d.checkpoint(t, out); err != nil {
				return err
			}
			log.Infof("Checkpoint after %d labels", processed)
		}
	}

	if err := d.checkpoint(t, out); err != nil {
		return err
	}
	log.Infof("Stage complete: %d processed, %d skipped", processed, t.Len()-processed)
	return nil
}

// RunAll executes every configured stage in order against one table.
func (d *Driver) RunAll(ctx context.Context, t *label.Table, resume bool, out string) error {
	for _, stage := range label.Stages() {
		if _, ok := d.processors[stage]; !ok {
			return fmt.Errorf("no processor configured for stage %s", stage)
		}
	}
	for _, stage := range label.Stages() {
		if err := d.RunStage(ctx, t, stage, resume, out); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) skip(stage label.Stage) {
	if d.recorder != nil {
		d.recorder.RecordSkip(stage)
	}
}

// checkpoint writes the table and flushes the archive. The two writes are
// not atomic together.
func (d *Driver) checkpoint(t *label.Table, out string) error {
	if err := t.WriteFile(out); err != nil {
		return fmt.Errorf("checkpoint table: %w", err)
	}
	if d.flush != nil {
		if err := d.flush(); err != nil {
			return fmt.Errorf("checkpoint archive: %w", err)
		}
	}
	if d.recorder != nil {
		d.recorder.RecordCheckpoint()
	}
	return nil
}

func (d *Driver) interrupted(t *label.Table, stage label.Stage, out string, cause error) error {
	d.log.WithField("stage", stage.String()).Warn("Interrupted, saving partial table and archive")
	if err := d.checkpoint(t, out); err != nil {
		return errors.Join(fmt.Errorf("stage %s interrupted: %w", stage, cause), err)
	}
	return fmt.Errorf("stage %s interrupted: %w", stage, cause)
}

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alvmarrod/label-weaver/internal/classify"
	"github.com/alvmarrod/label-weaver/internal/config"
	"github.com/alvmarrod/label-weaver/internal/crawler"
	"github.com/alvmarrod/label-weaver/internal/discogs"
	"github.com/alvmarrod/label-weaver/internal/fetch"
	"github.com/alvmarrod/label-weaver/internal/label"
	"github.com/alvmarrod/label-weaver/internal/memory"
	"github.com/alvmarrod/label-weaver/internal/metrics"
	"github.com/alvmarrod/label-weaver/internal/pipeline"
	"github.com/alvmarrod/label-weaver/internal/storage"
	"github.com/alvmarrod/label-weaver/internal/version"
	"github.com/alvmarrod/label-weaver/internal/wikipedia"
	"github.com/sirupsen/logrus"
)

// app owns the resources of a pipeline run.
type app struct {
	cfg     *config.Config
	lock    *pipeline.Lock
	store   *storage.Storage
	archive *memory.Archive
	tracker *metrics.Tracker
}

func openApp(cfg *config.Config) (*app, error) {
	logrus.Infof("Label Weaver v%s starting...", version.Version)
	logrus.Infof("Configuration loaded: data_dir=%s, max_depth=%d, save_interval=%d",
		cfg.DataDir, cfg.Pipeline.MaxDepth, cfg.Pipeline.SaveInterval)

	lock, err := pipeline.AcquireLock(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	// Initialize storage
	store, err := storage.NewStorage(cfg.ArchivePath)
	if err != nil {
		_ = lock.Release()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logrus.Infof("Archive database initialized: %s", cfg.ArchivePath)

	archive := memory.NewArchive()
	if err := archive.LoadFromStorage(store); err != nil {
		store.Close()
		_ = lock.Release()
		return nil, err
	}
	mappings, nodes := archive.GetStats()
	logrus.Infof("Archive loaded: %d name mappings, %d nodes", mappings, nodes)

	return &app{
		cfg:     cfg,
		lock:    lock,
		store:   store,
		archive: archive,
		tracker: metrics.NewTracker(),
	}, nil
}

func (a *app) flush() error {
	return a.archive.Flush(a.store)
}

// observe feeds request latency into the tracker.
func (a *app) observe(source string) fetch.ObserveFunc {
	return func(resp fetch.Response, err error) {
		if resp.Duration > 0 {
			a.tracker.RecordFetchTime(source, resp.Duration)
		}
	}
}

// processors builds every stage with the configured rules and sources.
func (a *app) processors() ([]pipeline.Processor, error) {
	cfg := a.cfg
	depth := cfg.Pipeline.MaxDepth

	disc := discogs.NewFromConfig(cfg.DiscogsSource(), a.observe(discogs.SourceName))
	wiki := wikipedia.NewFromConfig(cfg.WikipediaSource(), a.observe(wikipedia.SourceName))

	notices, err := loadNotices(cfg.CopyrightPath)
	if err != nil {
		return nil, err
	}

	return []pipeline.Processor{
		pipeline.TrivialStage{},
		pipeline.CrawlStage{Crawler: crawler.New(disc, a.archive, depth, a.tracker.RecordCrawlerEvent)},
		pipeline.CrawlStage{
			Crawler: crawler.New(wiki, a.archive, depth, a.tracker.RecordCrawlerEvent),
			URL:     wiki.URL,
		},
		pipeline.InterimStage{Rule: classify.Interim{
			UnderThreshold: cfg.Interim.UnderThreshold,
			OverThreshold:  cfg.Interim.OverThreshold,
		}},
		pipeline.CopyrightStage{
			Rule:    classify.Copyright{OverrideConflicts: cfg.Copyright.OverrideConflicts},
			Notices: notices,
		},
		pipeline.FinalStage{Rule: classify.Final{
			KeywordThreshold: cfg.Final.KeywordThreshold,
			Corrections:      classify.DefaultCorrections,
		}},
	}, nil
}

func (a *app) driver() (*pipeline.Driver, error) {
	procs, err := a.processors()
	if err != nil {
		return nil, err
	}
	return pipeline.NewDriver(procs, a.cfg.Pipeline.SaveInterval, a.flush, a.tracker), nil
}

// loadNotices reads the copyright map when it exists.
func loadNotices(path string) (map[string]label.Notice, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logrus.Infof("No copyright map at %s, notices come from the table", path)
		return nil, nil
	}
	notices, err := label.ReadNoticesFile(path)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Copyright map loaded: %d labels", len(notices))
	return notices, nil
}

// progress logs tracker counters until stop is closed.
func (a *app) progress(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logrus.Info(a.tracker.LogProgress())
		case <-stop:
			return
		}
	}
}

// emergency saves what it can after a forced exit request.
func (a *app) emergency() {
	logrus.Warn("Attempting emergency save...")
	if err := a.flush(); err != nil {
		logrus.Errorf("Emergency archive flush failed: %v", err)
	} else {
		logrus.Info("Emergency archive flush succeeded")
	}
	if err := a.tracker.WriteToFile(a.cfg.Metrics.Path, "forced_exit"); err != nil {
		logrus.Errorf("Emergency metrics save failed: %v", err)
	}
}

// shutdown flushes, writes metrics and releases every resource.
func (a *app) shutdown(reason string) {
	logrus.Info("Step 1/4: Flushing archive to database...")
	if err := a.flush(); err != nil {
		logrus.Errorf("Failed to flush archive: %v", err)
	}

	logrus.Info("Step 2/4: Writing final metrics...")
	mappings, nodes := a.archive.GetStats()
	logrus.Infof("Final stats: %s | archive: %d mappings, %d nodes", a.tracker.LogProgress(), mappings, nodes)
	if err := a.tracker.WriteToFile(a.cfg.Metrics.Path, reason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", a.cfg.Metrics.Path)
	}
	if a.cfg.Metrics.Textfile != "" {
		if err := a.tracker.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			logrus.Errorf("Failed to write metrics textfile: %v", err)
		}
	}

	logrus.Info("Step 3/4: Closing database connection...")
	if err := a.store.Close(); err != nil {
		logrus.Errorf("Failed to close database: %v", err)
	}

	logrus.Info("Step 4/4: Releasing data directory lock...")
	if err := a.lock.Release(); err != nil {
		logrus.Errorf("Failed to release lock: %v", err)
	}
	logrus.Info("Shutdown complete.")
}

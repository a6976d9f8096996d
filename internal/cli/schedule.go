package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/BartekS5/mapflow/pkg/logger"
)

// runScheduled starts a run at every tick of opts.Schedule until ctx is
// done. A tick is skipped while the previous run is still going.
func runScheduled(ctx context.Context, opts *RunOptions) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(opts.Schedule, func() {
		if err := runOnce(ctx, opts); err != nil {
			logger.Errorf("scheduled run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", opts.Schedule, err)
	}
	logger.Infof("scheduled %s with %q", opts.Config, opts.Schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// runWatched runs once and again after every change of the configuration
// files, once no further change arrived for opts.Debounce.
func runWatched(ctx context.Context, opts *RunOptions) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := map[string]bool{}
	for _, f := range []string{opts.Config, opts.Base} {
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		watched[abs] = true
		// editors replace files, so watch the directory
		if err := w.Add(filepath.Dir(abs)); err != nil {
			return err
		}
	}

	trigger := make(chan struct{}, 1)
	fire := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	timer := time.AfterFunc(time.Hour, fire)
	timer.Stop()
	defer timer.Stop()

	fire()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(ev.Name)
			if watched[abs] && ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("watcher: %v", err)
		case <-trigger:
			if err := runOnce(ctx, opts); err != nil {
				logger.Errorf("run failed: %v", err)
			} else {
				logger.Infof("run of %s finished, watching for changes", opts.Config)
			}
		}
	}
}

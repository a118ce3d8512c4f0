package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/facebox/config"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/runner"
)

// RunAction runs the configured pipeline until interrupted, then prints its statistics.
func RunAction(c *cli.Context) (err error) {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug := c.Bool(flagDebug)
	path := c.String(flagConfig)
	bootLogger := logging.NewLogger("facebox")
	if debug {
		bootLogger.SetLevel(logging.DEBUG)
	}
	cfg, err := config.Read(ctx, path, bootLogger)
	if err != nil {
		return err
	}
	logger, closeLogger := cfg.Log.NewLogger("facebox", debug)
	defer func() {
		err = multierr.Combine(err, closeLogger())
	}()

	r, err := startRunner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if r == nil {
			return
		}
		stats := r.Stats()
		err = multierr.Combine(err, r.Close())
		fmt.Fprintln(c.App.Writer, statsTable(stats))
	}()
	if addr := r.StreamAddress(); addr != "" {
		fmt.Fprintf(c.App.Writer, "streaming on http://%s/stream.mjpg\n", addr)
	}

	var changes <-chan *config.Config
	if c.Bool(flagWatch) {
		watcher, watchErr := config.NewWatcher(path, cfg, config.DefaultWatchDebounce, logger.Sublogger("config"))
		if watchErr != nil {
			return watchErr
		}
		defer func() {
			err = multierr.Combine(err, watcher.Close())
		}()
		changes = watcher.Configs()
	}

	var deadline <-chan time.Time
	if d := c.Duration(flagDuration); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-deadline:
			return nil
		case newCfg := <-changes:
			r, err = reconfigure(ctx, r, cfg, newCfg, logger, debug)
			if err != nil {
				return err
			}
			cfg = r.Config()
		}
	}
}

func startRunner(ctx context.Context, cfg *config.Config, logger logging.Logger) (*runner.Runner, error) {
	r, err := runner.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := r.Start(ctx); err != nil {
		return nil, multierr.Combine(err, r.Close())
	}
	return r, nil
}

// reconfigure replaces the running runner with one built from newCfg. When that fails the
// previous config is restored.
func reconfigure(
	ctx context.Context,
	old *runner.Runner,
	oldCfg, newCfg *config.Config,
	logger logging.Logger,
	debug bool,
) (*runner.Runner, error) {
	if err := old.Close(); err != nil {
		logger.Warnw("error closing previous run", "error", err)
	}
	newCfg.Log.Apply(logger, debug)
	r, err := startRunner(ctx, newCfg, logger)
	if err == nil {
		logger.Info("config change applied")
		return r, nil
	}
	logger.Errorw("cannot apply config change, restoring previous config", "error", err)
	oldCfg.Log.Apply(logger, debug)
	r, err = startRunner(ctx, oldCfg, logger)
	if err != nil {
		return nil, errors.Wrap(err, "cannot restore previous config")
	}
	return r, nil
}

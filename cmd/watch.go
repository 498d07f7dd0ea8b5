// File: cmd/watch.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/thumbwatch/internal/browser/cdpdom"
	"github.com/xkilldash9x/thumbwatch/internal/browser/extapi"
	"github.com/xkilldash9x/thumbwatch/internal/browser/session"
	"github.com/xkilldash9x/thumbwatch/internal/config"
	"github.com/xkilldash9x/thumbwatch/internal/observability"
	"github.com/xkilldash9x/thumbwatch/internal/sink"
	"github.com/xkilldash9x/thumbwatch/internal/thumbnail"
)

// errTabClosed ends a watch whose browser went away on its own.
var errTabClosed = errors.New("browser tab closed")

// newWatchCmd creates the `watch` command, which follows a live page in Chrome.
func newWatchCmd(a *app) *cobra.Command {
	var duration time.Duration
	watchCmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Open a page in Chrome and report thumbnails as they appear",
		Long: `Navigates a Chrome tab to the URL and keeps reporting thumbnails while the
page mutates, until interrupted or until --duration elapses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			return runWatch(ctx, a.cfg, args[0], cmd.OutOrStdout())
		},
	}

	addOutputFlags(watchCmd.Flags())
	watchCmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	watchCmd.Flags().Duration("refresh", 0, "re-report every tracked thumbnail at this interval (0 disables)")
	watchCmd.Flags().Bool("headless", true, "run Chrome without a window")
	return watchCmd
}

func runWatch(ctx context.Context, cfg *config.Config, target string, stdout io.Writer) error {
	logger := observability.GetLogger().Named("watch")
	disc := cfg.Discovery()

	out, err := sink.New(cfg.Output().Format, cfg.Output().File, stdout)
	if err != nil {
		return err
	}
	defer out.Close()

	sess, err := session.New(ctx, cfg.Browser(), logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	page := cdpdom.New(sess.Context(), sess, logger, cdpdom.Config{AltHosts: disc.AltHosts})
	if err := page.Install(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := page.Run(gctx); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errTabClosed
		}
		return nil
	})

	if err := sess.Navigate(gctx, target); err != nil {
		sess.Close()
		_ = g.Wait()
		if ctx.Err() != nil && isShutdown(err) {
			return nil
		}
		return err
	}
	page.SetURL(target)

	// The first scan waits until the extension namespace has been probed.
	var ready atomic.Bool
	g.Go(func() error {
		api, err := extapi.Detect(gctx, page)
		if err != nil {
			logger.Warn("Extension API probe failed; assuming chrome.", zap.Error(err))
		}
		logger.Info("Extension API detected.", zap.Stringer("api", api))
		ready.Store(true)
		return nil
	})

	builder := sink.Builder{SessionID: sess.ID(), LookupBase: cfg.Output().LookupBase}
	rep := sink.NewReporter[cdp.NodeID](gctx, linkHref[cdp.NodeID](page, page.Attribute, disc, page.FlavorProbe), builder, out, logger)

	mgr := thumbnail.New[cdp.NodeID](page, append(managerOptions(disc, logger),
		thumbnail.WithFlavorProbe(page.FlavorProbe))...)
	defer mgr.Close()

	page.OnMutation(mgr.RequestScan)
	h := hooks(disc, rep)
	h.ConfigReady = ready.Load
	h.OnInitialLoad = func() {
		logger.Info("Page loaded.", zap.String("url", page.URL()), zap.Stringer("flavor", page.FlavorProbe()))
	}
	mgr.SetListener(h)

	if disc.RefreshInterval > 0 {
		g.Go(func() error {
			refreshLoop(gctx, clockwork.NewRealClock(), disc.RefreshInterval, mgr, rep)
			return nil
		})
	}

	err = g.Wait()
	logger.Info("Watch finished.",
		zap.Int("tracked", mgr.Len()),
		zap.Int64("dropped_events", page.Dropped()))
	if err != nil && !isShutdown(err) {
		return fmt.Errorf("watch %s: %w", target, err)
	}
	return nil
}

// refreshLoop prunes the reporter's memory to the tracked set and re-reports
// everything tracked, once per interval.
func refreshLoop[N comparable](ctx context.Context, clock clockwork.Clock, interval time.Duration, mgr *thumbnail.Manager[N], rep *sink.Reporter[N]) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			rep.Prune(mgr.Tracked())
			mgr.NotifyAll()
		}
	}
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

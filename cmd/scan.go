// File: cmd/scan.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/thumbwatch/internal/browser/cdpdom"
	"github.com/xkilldash9x/thumbwatch/internal/browser/extapi"
	"github.com/xkilldash9x/thumbwatch/internal/browser/memdom"
	"github.com/xkilldash9x/thumbwatch/internal/config"
	"github.com/xkilldash9x/thumbwatch/internal/observability"
	"github.com/xkilldash9x/thumbwatch/internal/sink"
	"github.com/xkilldash9x/thumbwatch/internal/thumbnail"
)

// scanOptions are the scan flags that do not live in the config.
type scanOptions struct {
	flavor  string
	pageURL string
}

// newScanCmd creates the `scan` command, which runs one discovery pass over
// a saved HTML page.
func newScanCmd(a *app) *cobra.Command {
	opts := &scanOptions{}
	scanCmd := &cobra.Command{
		Use:   "scan <file|->",
		Short: "Discover thumbnails in a saved HTML page",
		Long: `Parses an HTML document (or stdin when the argument is "-") and reports
every thumbnail a single discovery pass finds.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), a.cfg, args[0], opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	addOutputFlags(scanCmd.Flags())
	scanCmd.Flags().StringVar(&opts.flavor, "flavor", "auto", "page layout: auto, main or alternate")
	scanCmd.Flags().StringVar(&opts.pageURL, "url", "", "URL the page was saved from, used by --flavor auto")
	return scanCmd
}

func runScan(ctx context.Context, cfg *config.Config, path string, opts *scanOptions, stdin io.Reader, stdout io.Writer) error {
	logger := observability.GetLogger().Named("scan")
	disc := cfg.Discovery()

	flavor, err := parseFlavor(opts.flavor)
	if err != nil {
		return err
	}
	if flavor == thumbnail.FlavorUnknown {
		flavor = cdpdom.ClassifyURL(opts.pageURL, disc.AltHosts)
	}
	if flavor == thumbnail.FlavorUnknown {
		flavor = thumbnail.FlavorMain
	}

	in := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open page: %w", err)
		}
		defer f.Close()
		in = f
	}

	doc, err := memdom.Load(in)
	if err != nil {
		return err
	}

	api, err := extapi.Detect(ctx, doc)
	if err != nil {
		logger.Debug("Extension API probe failed.", zap.Error(err))
	}
	logger.Debug("Page parsed.", zap.Stringer("flavor", flavor), zap.Stringer("api", api))

	out, err := sink.New(cfg.Output().Format, cfg.Output().File, stdout)
	if err != nil {
		return err
	}
	defer out.Close()

	builder := sink.Builder{SessionID: uuid.NewString(), LookupBase: cfg.Output().LookupBase}
	probe := func() thumbnail.Flavor { return flavor }
	href := linkHref[*html.Node](doc, documentAttr(doc), disc, probe)
	rep := sink.NewReporter[*html.Node](ctx, href, builder, out, logger)

	mgr := thumbnail.New[*html.Node](doc, append(managerOptions(disc, logger),
		thumbnail.WithFlavorProbe(probe))...)
	mgr.SetListener(hooks(disc, rep))
	mgr.RequestScan()
	// Close waits for the load hook, which may have run the scan instead.
	mgr.Close()

	logger.Info("Scan complete.", zap.Int("thumbnails", rep.Known()))
	return nil
}

// documentAttr adapts memdom attribute reads to attrReader.
func documentAttr(doc *memdom.Document) attrReader[*html.Node] {
	return func(_ context.Context, n *html.Node, name string) (string, bool, error) {
		v, ok := doc.Attr(n, name)
		return v, ok, nil
	}
}

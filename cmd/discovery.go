// File: cmd/discovery.go
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/xkilldash9x/thumbwatch/internal/config"
	"github.com/xkilldash9x/thumbwatch/internal/sink"
	"github.com/xkilldash9x/thumbwatch/internal/thumbnail"
)

// managerOptions translates the discovery config into manager options.
func managerOptions(disc config.DiscoveryConfig, logger *zap.Logger) []thumbnail.Option {
	return []thumbnail.Option{
		thumbnail.WithLogger(logger),
		thumbnail.WithLink(disc.LinkSelector, disc.LinkAttribute),
		thumbnail.WithAltLink(disc.AltLinkSelector),
		thumbnail.WithTiming(disc.Debounce, disc.GCInterval),
		thumbnail.WithConfigReadyWait(disc.ConfigReadyTimeout, disc.ConfigReadyInterval),
	}
}

// hooks builds the listener registration shared by both commands.
func hooks[N comparable](disc config.DiscoveryConfig, rep *sink.Reporter[N]) thumbnail.Hooks[N] {
	return thumbnail.Hooks[N]{
		Listener:    rep.Report,
		Selector:    disc.Selector,
		AltSelector: disc.AltSelector,
	}
}

// attrReader reads one attribute of a node.
type attrReader[N comparable] func(ctx context.Context, node N, name string) (string, bool, error)

// linkHref reads the link attribute of the first link under a thumbnail.
// The link selector follows the layout reported by flavor, the same probe the
// Manager picks its thumbnail selector with. A thumbnail without a link
// yields "".
func linkHref[N comparable](page thumbnail.Page[N], attr attrReader[N], disc config.DiscoveryConfig, flavor thumbnail.FlavorProbe) sink.HrefFunc[N] {
	mainSelector := disc.LinkSelector
	if mainSelector == "" {
		mainSelector = thumbnail.DefaultLinkSelector
	}
	altSelector := disc.AltLinkSelector
	if altSelector == "" {
		altSelector = thumbnail.DefaultAltLinkSelector
	}
	name := disc.LinkAttribute
	if name == "" {
		name = thumbnail.DefaultLinkAttribute
	}
	return func(ctx context.Context, element N) (string, error) {
		selector := mainSelector
		if flavor != nil && flavor() == thumbnail.FlavorAlternate {
			selector = altSelector
		}
		link, ok, err := page.QueryOne(ctx, element, selector)
		if err != nil || !ok {
			return "", err
		}
		value, _, err := attr(ctx, link, name)
		return value, err
	}
}

// parseFlavor accepts "auto", "main" and "alternate". Auto is FlavorUnknown.
func parseFlavor(s string) (thumbnail.Flavor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return thumbnail.FlavorUnknown, nil
	case "main":
		return thumbnail.FlavorMain, nil
	case "alternate", "alt", "invidious":
		return thumbnail.FlavorAlternate, nil
	default:
		return thumbnail.FlavorUnknown, fmt.Errorf("invalid --flavor %q: want auto, main or alternate", s)
	}
}

// addOutputFlags registers the flags every discovering command shares.
func addOutputFlags(flags *pflag.FlagSet) {
	flags.StringP("output", "o", "", "write events to this file instead of stdout")
	flags.StringP("format", "f", config.FormatJSONL, "event format: jsonl or text")
	flags.String("lookup", "", "base URL a video id is appended to as ?videoID=")
}

// File: internal/browser/session/emulation.go
package session

import (
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/thumbwatch/internal/config"
)

// Emulation returns the tab overrides requested by cfg. Unset fields produce
// no action.
func Emulation(cfg config.BrowserConfig) chromedp.Tasks {
	var tasks chromedp.Tasks
	if cfg.UserAgent != "" {
		ua := emulation.SetUserAgentOverride(cfg.UserAgent)
		if len(cfg.Languages) > 0 {
			ua = ua.WithAcceptLanguage(strings.Join(cfg.Languages, ","))
		}
		tasks = append(tasks, ua)
	}
	if cfg.Timezone != "" {
		tasks = append(tasks, emulation.SetTimezoneOverride(cfg.Timezone))
	}
	if cfg.Locale != "" {
		tasks = append(tasks, emulation.SetLocaleOverride().WithLocale(cfg.Locale))
	}
	if h := AcceptLanguage(cfg.Languages); h != "" {
		tasks = append(tasks, network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": h}))
	}
	return tasks
}

// AcceptLanguage renders languages as an Accept-Language value with
// descending quality weights. The first entry is implied q=1.
func AcceptLanguage(languages []string) string {
	parts := make([]string, 0, len(languages))
	for _, lang := range languages {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		n := len(parts)
		if n == 0 {
			parts = append(parts, lang)
			continue
		}
		q := 1.0 - 0.1*float64(n)
		if q < 0.1 {
			q = 0.1
		}
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", lang, q))
	}
	return strings.Join(parts, ",")
}

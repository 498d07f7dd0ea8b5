// File: internal/browser/cdpdom/flavor.go
package cdpdom

import (
	"net/url"
	"strings"

	"github.com/xkilldash9x/thumbwatch/internal/thumbnail"
)

// ClassifyURL maps a page URL to a site flavor. An empty or unparsable URL is
// FlavorUnknown. A host equal to, or a subdomain of, any of altHosts is
// FlavorAlternate; anything else is FlavorMain.
func ClassifyURL(raw string, altHosts []string) thumbnail.Flavor {
	if raw == "" || raw == "about:blank" {
		return thumbnail.FlavorUnknown
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return thumbnail.FlavorUnknown
	}
	host := strings.ToLower(u.Hostname())
	for _, alt := range altHosts {
		alt = strings.ToLower(strings.TrimSpace(alt))
		if alt == "" {
			continue
		}
		if host == alt || strings.HasSuffix(host, "."+alt) {
			return thumbnail.FlavorAlternate
		}
	}
	return thumbnail.FlavorMain
}

// FlavorProbe classifies the current main frame URL.
func (p *Page) FlavorProbe() thumbnail.Flavor {
	return ClassifyURL(p.URL(), p.cfg.AltHosts)
}

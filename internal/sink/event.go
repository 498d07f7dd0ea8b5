// File: internal/sink/event.go
package sink

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/xkilldash9x/thumbwatch/internal/uri"
)

// Kind says why an event was emitted.
type Kind string

const (
	// KindDiscovered is a thumbnail reported for the first time.
	KindDiscovered Kind = "discovered"
	// KindChanged is a tracked thumbnail whose link target changed.
	KindChanged Kind = "changed"
	// KindRefresh is a periodic re-report of a tracked thumbnail.
	KindRefresh Kind = "refresh"
)

// Event is one reported thumbnail.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      Kind      `json:"kind"`
	Href      string    `json:"href,omitempty"`
	VideoID   string    `json:"video_id,omitempty"`
	LookupURL string    `json:"lookup_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Builder stamps events with ids, the session and the time.
type Builder struct {
	SessionID  string
	LookupBase string
	Clock      clockwork.Clock
}

// Build creates an event for href.
func (b Builder) Build(kind Kind, href string) Event {
	clock := b.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	id := VideoID(href)
	return Event{
		ID:        uuid.NewString(),
		SessionID: b.SessionID,
		Kind:      kind,
		Href:      href,
		VideoID:   id,
		LookupURL: LookupURL(b.LookupBase, id),
		Timestamp: clock.Now().UTC(),
	}
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)

// VideoID extracts the video id from a watch link. Supported shapes are
// "watch?v=<id>", "/shorts/<id>", "/watch/<id>" and "/embed/<id>", absolute
// or relative. It returns "" when no id is present.
func VideoID(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if v := u.Query().Get("v"); v != "" {
		if p := strings.Trim(u.Path, "/"); p == "watch" || strings.HasSuffix(p, "/watch") {
			return validID(v)
		}
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		switch segments[i] {
		case "shorts", "watch", "embed":
			return validID(segments[i+1])
		}
	}
	return ""
}

func validID(s string) string {
	if videoIDPattern.MatchString(s) {
		return s
	}
	return ""
}

// LookupURL builds the lookup endpoint for a video id. Empty base or id yields "".
func LookupURL(base, videoID string) string {
	if base == "" || videoID == "" {
		return ""
	}
	return uri.ObjectToURI(base, uri.Params{{Key: "videoID", Value: videoID}}, true)
}

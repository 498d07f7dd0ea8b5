// File: internal/sink/sink.go
// Package sink writes discovery events to an output.
package sink

import (
	"fmt"
	"io"
	"os"
	"sync"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/thumbwatch/internal/config"
)

// Sink receives discovery events. Implementations are safe for concurrent use.
type Sink interface {
	Write(ev Event) error
	// Close flushes and releases the underlying output.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// New creates a sink for format writing to outputPath, or to stdout when the
// path is empty or "-".
func New(format, outputPath string, stdout io.Writer) (Sink, error) {
	var w io.WriteCloser
	if outputPath == "" || outputPath == "-" {
		w = nopWriteCloser{stdout}
	} else {
		f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open output file %s: %w", outputPath, err)
		}
		w = f
	}

	switch format {
	case config.FormatJSONL:
		return NewJSONLines(w), nil
	case config.FormatText:
		return NewText(w), nil
	default:
		_ = w.Close()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// JSONLines writes one JSON object per line.
type JSONLines struct {
	mu  sync.Mutex
	w   io.WriteCloser
	enc *json.Encoder
}

// NewJSONLines takes ownership of w.
func NewJSONLines(w io.WriteCloser) *JSONLines {
	return &JSONLines{w: w, enc: json.ConfigCompatibleWithStandardLibrary.NewEncoder(w)}
}

func (s *JSONLines) Write(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(ev); err != nil {
		return fmt.Errorf("sink: encode event: %w", err)
	}
	return nil
}

func (s *JSONLines) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Close()
}

// Text writes a human readable line per event.
type Text struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// NewText takes ownership of w.
func NewText(w io.WriteCloser) *Text {
	return &Text{w: w}
}

func (s *Text) Write(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := fmt.Sprintf("%s %-10s %s", ev.Timestamp.Format("15:04:05.000"), ev.Kind, ev.Href)
	if ev.VideoID != "" {
		line += " video=" + ev.VideoID
	}
	if ev.LookupURL != "" {
		line += " lookup=" + ev.LookupURL
	}
	if _, err := fmt.Fprintln(s.w, line); err != nil {
		return fmt.Errorf("sink: write event: %w", err)
	}
	return nil
}

func (s *Text) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Close()
}

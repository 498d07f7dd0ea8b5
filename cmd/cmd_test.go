// File: cmd/cmd_test.go
package cmd

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/thumbwatch/internal/browser/memdom"
	"github.com/xkilldash9x/thumbwatch/internal/config"
	"github.com/xkilldash9x/thumbwatch/internal/observability"
	"github.com/xkilldash9x/thumbwatch/internal/sink"
	"github.com/xkilldash9x/thumbwatch/internal/thumbnail"
)

const feedPage = `<!DOCTYPE html>
<html><body>
<div id="grid">
  <ytd-thumbnail><a href="/watch?v=aaaaaaaaaaa">one</a></ytd-thumbnail>
  <ytd-thumbnail><a href="/shorts/bbbbbbbbbbb">two</a></ytd-thumbnail>
  <ytd-playlist-thumbnail><span>no link</span></ytd-playlist-thumbnail>
  <div class="thumbnail"><a href="/watch?v=ccccccccccc">alt</a></div>
</div>
</body></html>`

// resetForTest isolates the global logger between command runs.
func resetForTest(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// emptyConfig keeps the run away from any config.yaml on the machine.
func emptyConfig(t *testing.T) string {
	return writeFile(t, "config.yaml", "logger:\n  level: error\n")
}

// execute runs a fresh command tree and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetForTest(t)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeEvents(t *testing.T, s string) []sink.Event {
	t.Helper()
	var events []sink.Event
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		var ev sink.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev), "line: %s", sc.Text())
		events = append(events, ev)
	}
	return events
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := execute(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "thumbwatch version "+Version)
}

func TestVersionCmd_IgnoresBrokenConfig(t *testing.T) {
	bad := writeFile(t, "config.yaml", "output:\n  format: xml\n")
	out, err := execute(t, "", "version", "-c", bad)
	require.NoError(t, err)
	assert.Equal(t, "thumbwatch version "+Version+"\n", out)
}

func TestScanCmd_File(t *testing.T) {
	page := writeFile(t, "feed.html", feedPage)
	out, err := execute(t, "", "scan", page, "-c", emptyConfig(t))
	require.NoError(t, err)

	events := decodeEvents(t, out)
	require.Len(t, events, 3)
	ids := make([]string, len(events))
	for i, ev := range events {
		assert.Equal(t, sink.KindDiscovered, ev.Kind)
		assert.NotEmpty(t, ev.SessionID)
		assert.Equal(t, events[0].SessionID, ev.SessionID)
		ids[i] = ev.VideoID
	}
	assert.Equal(t, []string{"aaaaaaaaaaa", "bbbbbbbbbbb", ""}, ids)
}

func TestScanCmd_Stdin(t *testing.T) {
	out, err := execute(t, feedPage, "scan", "-", "-c", emptyConfig(t))
	require.NoError(t, err)
	assert.Len(t, decodeEvents(t, out), 3)
}

func TestScanCmd_AlternateFlavor(t *testing.T) {
	page := writeFile(t, "feed.html", feedPage)
	cfg := writeFile(t, "config.yaml", `
logger:
  level: error
discovery:
  alt_hosts: ["yewtu.be"]
`)

	t.Run("from url", func(t *testing.T) {
		out, err := execute(t, "", "scan", page, "-c", cfg, "--url", "https://yewtu.be/feed/popular")
		require.NoError(t, err)
		events := decodeEvents(t, out)
		require.Len(t, events, 1)
		assert.Equal(t, "ccccccccccc", events[0].VideoID)
	})

	t.Run("forced", func(t *testing.T) {
		out, err := execute(t, "", "scan", page, "-c", cfg, "--flavor", "alternate")
		require.NoError(t, err)
		events := decodeEvents(t, out)
		require.Len(t, events, 1)
		assert.Equal(t, "/watch?v=ccccccccccc", events[0].Href)
		assert.Equal(t, "ccccccccccc", events[0].VideoID)
	})

	t.Run("main host", func(t *testing.T) {
		out, err := execute(t, "", "scan", page, "-c", cfg, "--url", "https://www.youtube.com/")
		require.NoError(t, err)
		assert.Len(t, decodeEvents(t, out), 3)
	})
}

func TestScanCmd_ConfigFileAndFlagPrecedence(t *testing.T) {
	page := writeFile(t, "feed.html", feedPage)
	cfg := writeFile(t, "config.yaml", `
logger:
  level: error
output:
  format: text
  lookup_base: https://api.example.com/lookup
discovery:
  selector: ytd-thumbnail
`)

	out, err := execute(t, "", "scan", page, "-c", cfg)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "discovered")
	assert.Contains(t, lines[0], "lookup=https://api.example.com/lookup?videoID=aaaaaaaaaaa")

	// The flag overrides the file.
	out, err = execute(t, "", "scan", page, "-c", cfg, "--format", "jsonl")
	require.NoError(t, err)
	events := decodeEvents(t, out)
	require.Len(t, events, 2)
	assert.Equal(t, "https://api.example.com/lookup?videoID=bbbbbbbbbbb", events[1].LookupURL)
}

func TestScanCmd_EnvOverride(t *testing.T) {
	page := writeFile(t, "feed.html", feedPage)
	t.Setenv("THUMBWATCH_OUTPUT_FORMAT", "text")

	out, err := execute(t, "", "scan", page, "-c", emptyConfig(t))
	require.NoError(t, err)
	assert.NotContains(t, out, "{")
	assert.Contains(t, out, "video=aaaaaaaaaaa")
}

func TestScanCmd_OutputFile(t *testing.T) {
	page := writeFile(t, "feed.html", feedPage)
	dest := filepath.Join(t.TempDir(), "events.jsonl")

	out, err := execute(t, "", "scan", page, "-c", emptyConfig(t), "-o", dest)
	require.NoError(t, err)
	assert.Empty(t, out)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Len(t, decodeEvents(t, string(content)), 3)
}

func TestScanCmd_Errors(t *testing.T) {
	page := writeFile(t, "feed.html", feedPage)
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad format", []string{"scan", page, "--format", "xml"}, "format must be"},
		{"bad flavor", []string{"scan", page, "--flavor", "sideways"}, "invalid --flavor"},
		{"missing page", []string{"scan", filepath.Join(t.TempDir(), "nope.html")}, "failed to open page"},
		{"no args", []string{"scan"}, "accepts 1 arg"},
		{"broken config", []string{"scan", page, "-c", writeFile(t, "bad.yaml", "logger: [")}, "error reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.args
			if tt.name != "broken config" {
				args = append(args, "-c", emptyConfig(t))
			}
			_, err := execute(t, "", args...)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseFlavor(t *testing.T) {
	for in, want := range map[string]thumbnail.Flavor{
		"":          thumbnail.FlavorUnknown,
		"auto":      thumbnail.FlavorUnknown,
		"MAIN":      thumbnail.FlavorMain,
		"alternate": thumbnail.FlavorAlternate,
		"invidious": thumbnail.FlavorAlternate,
	} {
		got, err := parseFlavor(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

// syncBuffer is a bytes.Buffer safe for a concurrent writer and reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRefreshLoop(t *testing.T) {
	doc, err := memdom.Load(strings.NewReader(feedPage))
	require.NoError(t, err)

	var buf syncBuffer
	out, err := sink.New(config.FormatJSONL, "", &buf)
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	disc := config.NewDefaultConfig().Discovery()
	href := linkHref[*html.Node](doc, documentAttr(doc), disc, nil)
	rep := sink.NewReporter[*html.Node](context.Background(), href, sink.Builder{SessionID: "s"}, out, logger)

	mgr := thumbnail.New[*html.Node](doc, managerOptions(disc, logger)...)
	defer mgr.Close()
	mgr.SetListener(hooks(disc, rep))
	mgr.RequestScan()

	ctx, cancel := context.WithCancel(context.Background())
	clock := clockwork.NewFakeClock()
	done := make(chan struct{})
	go func() {
		defer close(done)
		refreshLoop(ctx, clock, time.Minute, mgr, rep)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool {
		return strings.Count(buf.String(), "\n") == 6
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	events := decodeEvents(t, buf.String())
	for _, ev := range events[3:] {
		assert.Equal(t, sink.KindRefresh, ev.Kind)
	}
}

func TestLinkHref_FollowsFlavor(t *testing.T) {
	doc, err := memdom.Load(strings.NewReader(feedPage))
	require.NoError(t, err)
	ctx := context.Background()
	disc := config.NewDefaultConfig().Discovery()

	alt, err := doc.QueryAll(ctx, thumbnail.DefaultAltSelector)
	require.NoError(t, err)
	require.Len(t, alt, 1)
	mainThumbs, err := doc.QueryAll(ctx, "ytd-thumbnail")
	require.NoError(t, err)
	require.Len(t, mainThumbs, 2)

	var flavor atomic.Int32
	flavor.Store(int32(thumbnail.FlavorMain))
	href := linkHref[*html.Node](doc, documentAttr(doc), disc, func() thumbnail.Flavor {
		return thumbnail.Flavor(flavor.Load())
	})

	got, err := href(ctx, mainThumbs[0])
	require.NoError(t, err)
	assert.Equal(t, "/watch?v=aaaaaaaaaaa", got)
	got, err = href(ctx, alt[0])
	require.NoError(t, err)
	assert.Empty(t, got, "the main link selector does not match inside an alternate thumbnail")

	flavor.Store(int32(thumbnail.FlavorAlternate))
	got, err = href(ctx, alt[0])
	require.NoError(t, err)
	assert.Equal(t, "/watch?v=ccccccccccc", got)

	disc.AltLinkSelector = "a.missing"
	href = linkHref[*html.Node](doc, documentAttr(doc), disc, func() thumbnail.Flavor { return thumbnail.FlavorAlternate })
	got, err = href(ctx, alt[0])
	require.NoError(t, err)
	assert.Empty(t, got)
}

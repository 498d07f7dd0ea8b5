// File: internal/sink/reporter_test.go
package sink_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/thumbwatch/internal/sink"
)

// memorySink collects events.
type memorySink struct {
	mu     sync.Mutex
	events []sink.Event
}

func (m *memorySink) Write(ev sink.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memorySink) Close() error { return nil }

func (m *memorySink) kinds() []sink.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sink.Kind, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Kind
	}
	return out
}

// mockSink lets tests fail writes.
type mockSink struct {
	mock.Mock
}

func (m *mockSink) Write(ev sink.Event) error { return m.Called(ev).Error(0) }
func (m *mockSink) Close() error              { return m.Called().Error(0) }

func TestReporter_Kinds(t *testing.T) {
	hrefs := map[int]string{1: "/watch?v=aaaaaaaaaaa", 2: "/watch?v=bbbbbbbbbbb"}
	var mu sync.Mutex
	href := func(_ context.Context, n int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		return hrefs[n], nil
	}
	out := &memorySink{}
	r := sink.NewReporter[int](context.Background(), href, sink.Builder{SessionID: "s"}, out, zaptest.NewLogger(t))

	r.Report([]int{1, 2})
	mu.Lock()
	hrefs[1] = "/watch?v=ccccccccccc"
	mu.Unlock()
	r.Report([]int{1})
	r.Report([]int{1, 2})
	r.Report(nil)

	assert.Equal(t, []sink.Kind{
		sink.KindDiscovered, sink.KindDiscovered,
		sink.KindChanged,
		sink.KindRefresh, sink.KindRefresh,
	}, out.kinds())
	assert.Equal(t, "ccccccccccc", out.events[2].VideoID)
}

func TestReporter_Prune(t *testing.T) {
	out := &memorySink{}
	r := sink.NewReporter[int](context.Background(),
		func(context.Context, int) (string, error) { return "/shorts/abcdefghijk", nil },
		sink.Builder{}, out, nil)

	r.Report([]int{1, 2, 3})
	require.Equal(t, 3, r.Known())
	r.Prune([]int{2})
	assert.Equal(t, 1, r.Known())

	// A pruned element that comes back is discovered again.
	r.Report([]int{1})
	assert.Equal(t, sink.KindDiscovered, out.kinds()[3])
}

func TestReporter_HrefErrorStillReports(t *testing.T) {
	out := &memorySink{}
	r := sink.NewReporter[int](context.Background(),
		func(context.Context, int) (string, error) { return "", errors.New("node gone") },
		sink.Builder{}, out, zaptest.NewLogger(t))

	r.Report([]int{7})
	require.Len(t, out.events, 1)
	assert.Empty(t, out.events[0].Href)
}

func TestReporter_WriteFailureDoesNotStop(t *testing.T) {
	out := &mockSink{}
	out.On("Write", mock.Anything).Return(errors.New("disk full")).Once()
	out.On("Write", mock.Anything).Return(nil).Once()

	r := sink.NewReporter[int](context.Background(),
		func(context.Context, int) (string, error) { return "", nil },
		sink.Builder{}, out, zaptest.NewLogger(t))
	r.Report([]int{1, 2})

	out.AssertNumberOfCalls(t, "Write", 2)
}

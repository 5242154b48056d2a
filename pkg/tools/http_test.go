package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Varamadon/auto-refactor/pkg/plan"
)

// fakeTool is an in-process refactoring tool recording what it receives.
type fakeTool struct {
	mu       sync.Mutex
	files    []string
	plans    []json.RawMessage
	finishes int
	status   int
}

func (f *fakeTool) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /files/next", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		if len(f.files) == 0 {
			return
		}
		io.WriteString(w, f.files[0])
		f.files = f.files[1:]
	})
	mux.HandleFunc("POST /actions/execute", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.plans = append(f.plans, body)
		f.mu.Unlock()
	})
	mux.HandleFunc("POST /finish", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.finishes++
		f.mu.Unlock()
	})
	return mux
}

func newHTTPFixture(t *testing.T, tool *fakeTool) (*HTTPExecutor, *Registry) {
	t.Helper()
	srv := httptest.NewServer(tool.handler())
	t.Cleanup(srv.Close)

	reg := NewRegistry()
	reg.Register("repo", srv.URL)
	return NewHTTPExecutor(reg, 5*time.Second), reg
}

func TestHTTPExecutor_Session(t *testing.T) {
	tool := &fakeTool{files: []string{"A\nB"}}
	e, reg := newHTTPFixture(t, tool)
	ctx := context.Background()

	text, err := e.FetchNextFile(ctx, "repo")
	require.NoError(t, err)
	require.Equal(t, "A\nB", text)

	text, err = e.FetchNextFile(ctx, "repo")
	require.NoError(t, err)
	require.Empty(t, text)

	p := plan.ActionPlan{
		FileHash: plan.Fingerprint("A\nB"),
		Items:    plan.Items{plan.AddComment{Line: 1, Content: "first"}},
	}
	require.NoError(t, e.ApplyActionPlan(ctx, "repo", p))

	require.NoError(t, e.Finish(ctx, "repo"))
	_, ok := reg.Lookup("repo")
	require.False(t, ok)

	// Finishing again does not reach the tool.
	require.NoError(t, e.Finish(ctx, "repo"))

	tool.mu.Lock()
	defer tool.mu.Unlock()
	require.Equal(t, 1, tool.finishes)
	require.Len(t, tool.plans, 1)
	require.JSONEq(t, `{"fileHash":"`+p.FileHash+`","actionItems":[{"type":"addComment","line":1,"content":"first"}]}`, string(tool.plans[0]))
}

func TestHTTPExecutor_Unregistered(t *testing.T) {
	e := NewHTTPExecutor(NewRegistry(), time.Second)
	ctx := context.Background()

	_, err := e.FetchNextFile(ctx, "ghost")
	require.ErrorIs(t, err, ErrToolNotRegistered)

	err = e.ApplyActionPlan(ctx, "ghost", plan.ActionPlan{})
	require.ErrorIs(t, err, ErrToolNotRegistered)

	require.NoError(t, e.Finish(ctx, "ghost"))
}

func TestHTTPExecutor_ErrorStatus(t *testing.T) {
	tool := &fakeTool{status: http.StatusInternalServerError}
	e, _ := newHTTPFixture(t, tool)

	_, err := e.FetchNextFile(context.Background(), "repo")
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestHTTPExecutor_ToolDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	reg := NewRegistry()
	reg.Register("repo", srv.URL)
	e := NewHTTPExecutor(reg, time.Second)

	_, err := e.FetchNextFile(context.Background(), "repo")
	require.Error(t, err)
}

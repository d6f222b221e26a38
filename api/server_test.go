package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bouncer/hal"
	"bouncer/link"
	"bouncer/sketch"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSketch struct {
	mu sync.Mutex
	st sketch.State
}

func (f *fakeSketch) State() sketch.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

type readerLink struct{ r *link.Reader }

func (l readerLink) Status() link.Status {
	return link.Status{Open: true, State: l.r.State().String(), Stats: l.r.Stats()}
}

func (l readerLink) Inject(p []byte) error { return l.r.Feed(p) }

type staticPorts []string

func (p staticPorts) List() ([]string, error)              { return p, nil }
func (p staticPorts) Open(string, int) (hal.Serial, error) { return nil, hal.ErrNotImplemented }

type testEnv struct {
	srv       *Server
	h         http.Handler
	sketch    *fakeSketch
	published []int
}

func newTestEnv(t *testing.T, withLink bool) *testEnv {
	t.Helper()
	env := &testEnv{sketch: &fakeSketch{st: sketch.State{X: 3, Y: 4, Dir: 1, Frame: 9, Width: 8, Height: 6}}}
	opts := Options{
		Sketch:      env.sketch,
		Ports:       staticPorts{"/dev/ttyUSB0"},
		Framebuffer: hal.NewFramebuffer(8, 6),
		StreamHz:    50,
	}
	if withLink {
		opts.Link = readerLink{r: link.NewReader('|', func(v int) { env.published = append(env.published, v) })}
	}
	env.srv = NewServer(opts)
	env.h = env.srv.Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, ApiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	var resp ApiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)
	rec, resp := env.do(t, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || resp.Status != "success" {
		t.Fatalf("GET /api/health = %d %+v, want 200 success", rec.Code, resp)
	}
	data, _ := resp.Data.(map[string]any)
	if data["status"] != "ok" || data["version"] == "" {
		t.Fatalf("health data = %v, want status ok and a version", data)
	}
}

func TestStateWithoutLink(t *testing.T) {
	env := newTestEnv(t, false)
	rec := httptest.NewRecorder()
	env.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/state = %d, want 200", rec.Code)
	}

	var resp struct {
		Status string        `json:"status"`
		Data   StateResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Sketch.X != 3 || resp.Data.Sketch.Y != 4 || resp.Data.Sketch.Frame != 9 {
		t.Fatalf("sketch = %+v, want x=3 y=4 frame=9", resp.Data.Sketch)
	}
	if resp.Data.Link != nil {
		t.Fatalf("link = %+v, want omitted", resp.Data.Link)
	}
}

func TestLinkInject(t *testing.T) {
	env := newTestEnv(t, true)

	rec, resp := env.do(t, http.MethodPost, "/api/link", "42|")
	if rec.Code != http.StatusOK || resp.Status != "success" {
		t.Fatalf("POST /api/link = %d %+v, want 200 success", rec.Code, resp)
	}
	if len(env.published) != 1 || env.published[0] != 42 {
		t.Fatalf("published = %v, want [42]", env.published)
	}

	rec, resp = env.do(t, http.MethodPost, "/api/link", "|")
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(resp.Error, "empty value") {
		t.Fatalf("POST /api/link empty = %d %+v, want 422 empty value", rec.Code, resp)
	}

	rec, _ = env.do(t, http.MethodPost, "/api/link", strings.Repeat("1", maxInjectBytes+1))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("POST /api/link oversized = %d, want 413", rec.Code)
	}
}

func TestLinkInjectDisabled(t *testing.T) {
	env := newTestEnv(t, false)
	rec, resp := env.do(t, http.MethodPost, "/api/link", "1|")
	if rec.Code != http.StatusConflict || resp.Error != "link disabled" {
		t.Fatalf("POST /api/link = %d %+v, want 409 link disabled", rec.Code, resp)
	}
}

func TestPorts(t *testing.T) {
	env := newTestEnv(t, false)
	rec, resp := env.do(t, http.MethodGet, "/api/ports", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/ports = %d, want 200", rec.Code)
	}
	names, _ := resp.Data.([]any)
	if len(names) != 1 || names[0] != "/dev/ttyUSB0" {
		t.Fatalf("ports = %v, want [/dev/ttyUSB0]", resp.Data)
	}
}

func TestFramePNG(t *testing.T) {
	env := newTestEnv(t, false)
	rec := httptest.NewRecorder()
	env.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/frame.png", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("GET /api/frame.png = %d %q, want 200 image/png", rec.Code, rec.Header().Get("Content-Type"))
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 6 {
		t.Fatalf("frame size = %dx%d, want 8x6", b.Dx(), b.Dy())
	}
}

func TestStreamSendsStateAndClosesOnShutdown(t *testing.T) {
	env := newTestEnv(t, true)
	ts := httptest.NewServer(env.h)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/stream", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var st StateResponse
	if err := conn.ReadJSON(&st); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if st.Sketch.Frame != 9 || st.Link == nil || !st.Link.Open {
		t.Fatalf("first message = %+v, want frame 9 with link status", st)
	}

	env.sketch.mu.Lock()
	env.sketch.st.Frame = 10
	env.sketch.mu.Unlock()
	if err := conn.ReadJSON(&st); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if st.Sketch.Frame != 10 {
		t.Fatalf("second message frame = %d, want 10", st.Sketch.Frame)
	}

	if err := env.srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
				t.Fatalf("read after Shutdown = %v, want going-away close", err)
			}
			break
		}
	}
}

type bytesLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *bytesLog) WriteLineString(s string) { l.WriteLineBytes([]byte(s)) }

func (l *bytesLog) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, string(b))
}

func TestRequestLogGoesToLogger(t *testing.T) {
	log := &bytesLog{}
	srv := NewServer(Options{Sketch: &fakeSketch{}, Log: log})
	h := srv.Handler()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.lines) != 1 {
		t.Fatalf("logged %d lines, want 1: %q", len(log.lines), log.lines)
	}
	if l := log.lines[0]; !strings.Contains(l, "/api/health") || strings.HasSuffix(l, "\n") {
		t.Fatalf("log line = %q, want the request path without a trailing newline", l)
	}
}

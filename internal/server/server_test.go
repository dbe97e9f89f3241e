package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/wandsign/internal/app"
	"github.com/ayusman/wandsign/internal/gesture"
	"github.com/ayusman/wandsign/internal/hook"
)

type fakePipeline struct {
	mu      sync.Mutex
	lib     *gesture.Library
	enabled bool
	stats   app.Stats
}

func (f *fakePipeline) Set() string               { return "test" }
func (f *fakePipeline) Library() *gesture.Library { return f.lib }
func (f *fakePipeline) Stats() app.Stats          { return f.stats }

func (f *fakePipeline) IsEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakePipeline) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = enabled
}

type fakeHooks struct{}

func (fakeHooks) Stats() hook.RunnerStats {
	return hook.RunnerStats{Dispatched: 3, Succeeded: 2, Failed: 1}
}

func testLibrary(t *testing.T) *gesture.Library {
	t.Helper()
	lib, err := gesture.NewLibrary(gesture.LibraryConfig{SamplesPerTemplate: 2},
		[]gesture.Template{
			{Label: 2, Name: "down", X: []gesture.Sequence{{3, 2, 1}, {3, 2}}, Y: []gesture.Sequence{{1}, {1}}},
			{Label: 1, Name: "up", X: []gesture.Sequence{{1, 2}, {1, 2, 3, 4}}, Y: []gesture.Sequence{{1}, {2}}},
		},
		map[gesture.Label]gesture.Bounds{1: {X: 1.5, Y: 2}, 2: {X: 3, Y: 4}})
	require.NoError(t, err)
	return lib
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New(Config{Quiet: true})

	rec := get(t, s, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response["status"])
	assert.Contains(t, response, "uptime")

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(method, "/api/health", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
	}
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{Quiet: true})

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/nonexistent").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/library").Code, "no pipeline configured")
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/sets").Code, "no store configured")
}

func TestServer_Library(t *testing.T) {
	s := New(Config{Quiet: true, Pipeline: &fakePipeline{lib: testLibrary(t)}})

	rec := get(t, s, "/api/library")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Set                string `json:"set"`
		SamplesPerTemplate int    `json:"samples_per_template"`
		Gestures           []struct {
			Label   int            `json:"label"`
			Name    string         `json:"name"`
			Bounds  gesture.Bounds `json:"bounds"`
			Lengths []int          `json:"lengths"`
		} `json:"gestures"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Equal(t, "test", resp.Set)
	assert.Equal(t, 2, resp.SamplesPerTemplate)
	require.Len(t, resp.Gestures, 2)
	assert.Equal(t, 1, resp.Gestures[0].Label)
	assert.Equal(t, "up", resp.Gestures[0].Name)
	assert.Equal(t, gesture.Bounds{X: 1.5, Y: 2}, resp.Gestures[0].Bounds)
	assert.Equal(t, []int{2, 4}, resp.Gestures[0].Lengths)
	assert.Equal(t, 2, resp.Gestures[1].Label)
}

func TestServer_Stats(t *testing.T) {
	p := &fakePipeline{lib: testLibrary(t), stats: app.Stats{SamplesRead: 120, Recognized: 4, WindowsDropped: 1}}
	s := New(Config{Quiet: true, Pipeline: p, Hooks: fakeHooks{}, Hub: NewHub()})

	rec := get(t, s, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, uint64(120), resp.Pipeline.SamplesRead)
	assert.Equal(t, uint64(4), resp.Pipeline.Recognized)
	assert.Equal(t, uint64(1), resp.Pipeline.WindowsDropped)
	require.NotNil(t, resp.Hooks)
	assert.Equal(t, uint64(1), resp.Hooks.Failed)
	assert.Equal(t, 0, resp.Clients)
}

func TestServer_Enabled(t *testing.T) {
	p := &fakePipeline{enabled: true}
	s := New(Config{Quiet: true, Pipeline: p})

	put := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/enabled", bytes.NewBufferString(body)))
		return rec
	}

	rec := put(`{"enabled": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled": false}`, rec.Body.String())
	assert.False(t, p.IsEnabled())

	assert.Equal(t, http.StatusBadRequest, put(`{}`).Code)
	assert.Equal(t, http.StatusBadRequest, put(`nope`).Code)

	rec = get(t, s, "/api/enabled")
	assert.JSONEq(t, `{"enabled": false}`, rec.Body.String())
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(New(Config{Quiet: true, Hub: hub}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/results"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	ev := app.Event{ID: "ev-1", Set: "test", Recognized: true, Label: 3, Name: "circle", Score: 7.5, WindowLength: 22}
	require.NoError(t, hub.Publish(context.Background(), ev))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got app.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, ev.Label, got.Label)
	assert.Equal(t, ev.Name, got.Name)
	assert.True(t, got.Recognized)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "connection closes after hub shutdown")
}

func TestHub_BroadcastInfiniteDistances(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(New(Config{Quiet: true, Hub: hub}))
	defer ts.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/results"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	ev := app.Event{ID: "ev-inf", Recognized: true, Label: 0, WindowLength: 4,
		Distances: []gesture.LabelDistance{
			{Label: 0, Candidate: true},
			{Label: 1, AvgX: math.Inf(1), AvgY: math.Inf(1)},
		}}
	require.NoError(t, hub.Publish(context.Background(), ev))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `{"label":1,"avg_x":null,"avg_y":null,"candidate":false}`)
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub := NewHub()
	assert.NoError(t, hub.Publish(context.Background(), app.Event{ID: "x"}))
	hub.Close()
	assert.NoError(t, hub.Publish(context.Background(), app.Event{ID: "y"}))
}

func TestServer_ListenAndServe_Shutdown(t *testing.T) {
	s := New(Config{Quiet: true, Hub: NewHub()})
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

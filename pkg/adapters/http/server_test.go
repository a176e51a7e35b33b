package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	statehttp "github.com/aretw0/statekit/pkg/adapters/http"
	"github.com/aretw0/statekit/pkg/docstore"
	"github.com/aretw0/statekit/pkg/domain"
	"github.com/aretw0/statekit/pkg/store"
)

func newServer(t *testing.T, opts ...statehttp.Option) (*httptest.Server, *statehttp.Server, *store.Store[docstore.Document]) {
	t.Helper()
	s, err := docstore.New(docstore.Document{"title": "draft", "meta": map[string]any{"author": "ada"}})
	require.NoError(t, err)
	srv := statehttp.NewServer(s, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts, srv, s
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return resp, out
}

func TestHealthAndInfo(t *testing.T) {
	ts, _, _ := newServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/info")
	require.NoError(t, err)
	defer resp.Body.Close()
	var info map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "statekit-http", info["app"])
	assert.NotEmpty(t, info["version"])
}

func TestGetState(t *testing.T) {
	ts, _, _ := newServer(t)

	resp, err := http.Get(ts.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"draft","meta":{"author":"ada"}}`, string(data))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestListActions(t *testing.T) {
	ts, _, _ := newServer(t)

	resp, err := http.Get(ts.URL + "/actions?available=set,merge")
	require.NoError(t, err)
	defer resp.Body.Close()
	var infos []statehttp.ActionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))

	assert.Equal(t, []statehttp.ActionInfo{
		{Name: "append", Available: false},
		{Name: "delete", Available: false},
		{Name: "merge", Available: true},
		{Name: "set", Available: true},
	}, infos)
}

func TestDispatch(t *testing.T) {
	ts, _, s := newServer(t)

	resp, state := post(t, ts.URL+"/actions/set", `{"path":"meta.reviewer","value":"grace"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "grace", state["meta"].(map[string]any)["reviewer"])
	assert.Equal(t, "grace", s.Get()["meta"].(map[string]any)["reviewer"])
}

func TestDispatch_Errors(t *testing.T) {
	ts, _, _ := newServer(t)

	tests := []struct {
		name   string
		url    string
		body   string
		status int
	}{
		{"unknown action", "/actions/launch", `{}`, http.StatusNotFound},
		{"not granted", "/actions/delete?available=set", `{"path":"title"}`, http.StatusForbidden},
		{"bad payload", "/actions/merge", `{"path":"meta","value":"scalar"}`, http.StatusBadRequest},
		{"handler failure", "/actions/delete", `{"path":"missing"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, ts.URL+tt.url, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}

	resp, err := http.Post(ts.URL+"/actions/set", "application/json", strings.NewReader(`{"path":`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statehttp.StatusFor(domain.ErrReentrantAction))
	assert.Equal(t, http.StatusUnprocessableEntity, statehttp.StatusFor(&domain.AsyncPhaseError{Action: "x", Err: errors.New("timeout")}))
	assert.Equal(t, http.StatusInternalServerError, statehttp.StatusFor(errors.New("other")))
}

func TestMetricsHandler(t *testing.T) {
	ts, _, _ := newServer(t, statehttp.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "statekit_actions_total 0")
	})))

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "statekit_actions_total 0", string(data))
}

type event struct {
	name string
	data string
}

// readEvents parses server-sent events until the stream ends.
func readEvents(r io.Reader, out chan<- event) {
	defer close(out)
	sc := bufio.NewScanner(r)
	var ev event
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			out <- ev
			ev = event{}
		}
	}
}

func subscribe(t *testing.T, ts *httptest.Server, query string) <-chan event {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events"+query, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan event, 8)
	go readEvents(resp.Body, events)

	ping := next(t, events)
	assert.Equal(t, "ping", ping.name)
	return events
}

func next(t *testing.T, events <-chan event) event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return event{}
	}
}

func TestSubscribeEvents(t *testing.T) {
	ts, srv, _ := newServer(t)
	events := subscribe(t, ts, "")
	require.Eventually(t, func() bool { return srv.Streams.Len() == 1 }, time.Second, 10*time.Millisecond)

	resp, _ := post(t, ts.URL+"/actions/set", `{"path":"title","value":"final"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ev := next(t, events)
	assert.Equal(t, "delta", ev.name)
	var delta []map[string]any
	require.NoError(t, json.Unmarshal([]byte(ev.data), &delta))
	require.Len(t, delta, 1)
	assert.Equal(t, []any{"title"}, delta[0]["path"])
	assert.Equal(t, "changed", delta[0]["kind"])
	assert.Equal(t, "draft", delta[0]["old_value"])
	assert.Equal(t, "final", delta[0]["new_value"])
}

func TestSubscribeEvents_Watch(t *testing.T) {
	ts, _, _ := newServer(t)
	events := subscribe(t, ts, "?watch=author")

	post(t, ts.URL+"/actions/set", `{"path":"title","value":"final"}`)
	post(t, ts.URL+"/actions/set", `{"path":"meta.author","value":"grace"}`)

	ev := next(t, events)
	assert.Contains(t, ev.data, `"new_value":"grace"`)
	assert.NotContains(t, ev.data, "final")
}

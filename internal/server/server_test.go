package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GustavoChierici/system-dashboard/internal/errors"
	"github.com/GustavoChierici/system-dashboard/internal/model"
	"github.com/GustavoChierici/system-dashboard/internal/procs"
	"github.com/GustavoChierici/system-dashboard/internal/sampler"
	sourcetest "github.com/GustavoChierici/system-dashboard/internal/source/testing"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	reader  *sourcetest.FakeReader
	sampler *sampler.Sampler
	srv     *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := sourcetest.NewFakeReader()
	r.UptimeSec = 100
	r.Procs = []model.ProcessEntry{
		{PID: 1, Name: "init", UTime: 100},
		{PID: 2, Name: "worker", UTime: 3000, STime: 1000},
	}
	r.QueueCPU(
		model.CPUSnapshot{
			Aggregate: model.CPUTimes{User: 100, Idle: 100},
			Cores:     []model.CPUTimes{{User: 50, Idle: 50}, {User: 50, Idle: 50}},
		},
		model.CPUSnapshot{
			Aggregate: model.CPUTimes{User: 200, Idle: 200},
			Cores:     []model.CPUTimes{{User: 100, Idle: 100}, {User: 100, Idle: 100}},
		},
	)
	r.SetMemory(model.MemoryInfo{MemTotal: 1000, MemUsed: 250}, nil)

	s := sampler.New(r, sampler.WithReadTimeout(0))
	srv := httptest.NewServer(New(s, procs.NewBuilder(r)).Handler())
	t.Cleanup(srv.Close)
	return &fixture{reader: r, sampler: s, srv: srv}
}

func (f *fixture) tick(t *testing.T, at time.Time) {
	t.Helper()
	_, err := f.sampler.Tick(context.Background(), at)
	require.NoError(t, err)
}

func (f *fixture) run(t *testing.T) {
	t.Helper()
	f.tick(t, t0)
	f.tick(t, t0.Add(time.Second))
}

func get(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestNoDataYet(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/cpu/0", "/api/cpu/-1", "/api/cores", "/api/memory", "/api/host"} {
		var body errorBody
		assert.Equal(t, http.StatusServiceUnavailable, get(t, f.srv.URL+path, &body), path)
		assert.Equal(t, "no data yet", body.Error, path)
	}
}

func TestSeededIsNotEnoughForCPU(t *testing.T) {
	f := newFixture(t)
	f.tick(t, t0)

	assert.Equal(t, http.StatusServiceUnavailable, get(t, f.srv.URL+"/api/cpu/0", nil))

	var cores CoresResponse
	assert.Equal(t, http.StatusOK, get(t, f.srv.URL+"/api/cores", &cores))
	assert.Equal(t, CoresResponse{Cores: 2, State: "seeded"}, cores)
}

func TestCPUEndpoint(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	var cpu CPUResponse
	require.Equal(t, http.StatusOK, get(t, f.srv.URL+"/api/cpu/1", &cpu))
	assert.Equal(t, 1, cpu.Core)
	require.Len(t, cpu.Points, 1)
	assert.InDelta(t, 50.0, cpu.Points[0].Value, 1e-9)
	assert.True(t, cpu.Points[0].Time.Equal(t0.Add(time.Second)))

	require.Equal(t, http.StatusOK, get(t, f.srv.URL+"/api/cpu/-1", &cpu))
	assert.Equal(t, -1, cpu.Core)
	assert.Len(t, cpu.Points, 1)

	var body errorBody
	assert.Equal(t, http.StatusNotFound, get(t, f.srv.URL+"/api/cpu/2", &body))
	assert.Equal(t, "unknown core 2", body.Error)
	assert.Equal(t, http.StatusNotFound, get(t, f.srv.URL+"/api/cpu/-2", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, f.srv.URL+"/api/cpu/first", nil))
}

func TestMemoryAndHost(t *testing.T) {
	f := newFixture(t)
	f.run(t)

	var mem model.MemoryInfo
	require.Equal(t, http.StatusOK, get(t, f.srv.URL+"/api/memory", &mem))
	assert.Equal(t, model.MemoryInfo{MemTotal: 1000, MemUsed: 250}, mem)

	var host HostResponse
	require.Equal(t, http.StatusOK, get(t, f.srv.URL+"/api/host", &host))
	assert.Equal(t, "Linux fakehost 6.1.0 x86_64", host.Host)
}

func TestProcessesEndpoint(t *testing.T) {
	f := newFixture(t)

	// process lists do not depend on sampling
	var list ProcessesResponse
	require.Equal(t, http.StatusOK, get(t, f.srv.URL+"/api/processes", &list))
	require.Len(t, list.Processes, 2)
	assert.Equal(t, "worker", list.Processes[0].Name)
	assert.InDelta(t, 40.0, list.Processes[0].CPU, 1e-9)

	f.reader.SetProcesses(nil, errors.Unavailable(nil, "proc is gone"))
	var body errorBody
	assert.Equal(t, http.StatusServiceUnavailable, get(t, f.srv.URL+"/api/processes", &body))
	assert.Equal(t, errors.ErrSourceUnavailable, body.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Post(f.srv.URL+"/api/memory", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func dial(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func ask(t *testing.T, conn *websocket.Conn, req any) Reply {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var rep Reply
	require.NoError(t, conn.ReadJSON(&rep))
	return rep
}

func TestWebsocketRequestReply(t *testing.T) {
	f := newFixture(t)
	conn := dial(t, f)

	rep := ask(t, conn, Request{ID: "a", View: ViewCPU, Core: 0})
	assert.Equal(t, "a", rep.ID)
	assert.Equal(t, http.StatusServiceUnavailable, rep.Status)
	assert.Equal(t, "no data yet", rep.Error)
	assert.Nil(t, rep.Data)

	f.run(t)

	rep = ask(t, conn, Request{ID: "b", View: ViewCPU, Core: -1})
	assert.Equal(t, "b", rep.ID)
	assert.Equal(t, http.StatusOK, rep.Status)
	data, err := json.Marshal(rep.Data)
	require.NoError(t, err)
	var cpu CPUResponse
	require.NoError(t, json.Unmarshal(data, &cpu))
	assert.Equal(t, -1, cpu.Core)
	require.Len(t, cpu.Points, 1)
	assert.InDelta(t, 50.0, cpu.Points[0].Value, 1e-9)

	rep = ask(t, conn, Request{ID: "c", View: ViewProcesses})
	assert.Equal(t, http.StatusOK, rep.Status)
	assert.Contains(t, rep.Data, "processes")

	rep = ask(t, conn, Request{ID: "d", View: ViewHost})
	assert.Equal(t, map[string]any{"host": "Linux fakehost 6.1.0 x86_64"}, rep.Data)

	rep = ask(t, conn, Request{ID: "e", View: "gpu"})
	assert.Equal(t, http.StatusBadRequest, rep.Status)
	assert.Equal(t, `unknown view "gpu"`, rep.Error)
}

func TestWebsocketInvalidJSON(t *testing.T) {
	f := newFixture(t)
	conn := dial(t, f)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var rep Reply
	require.NoError(t, conn.ReadJSON(&rep))
	assert.Equal(t, http.StatusBadRequest, rep.Status)

	// the session survives a bad request
	rep = ask(t, conn, Request{ID: "ok", View: ViewCores})
	assert.Equal(t, "ok", rep.ID)
	assert.Equal(t, http.StatusServiceUnavailable, rep.Status)
}

func TestWebsocketNeverPushes(t *testing.T) {
	f := newFixture(t)
	conn := dial(t, f)
	f.run(t)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := New(sampler.New(sourcetest.NewFakeReader()), procs.NewBuilder(sourcetest.NewFakeReader()))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/memory")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeClosesWebsocketSessions(t *testing.T) {
	r := sourcetest.NewFakeReader()
	s := New(sampler.New(r, sampler.WithReadTimeout(0)), procs.NewBuilder(r))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	rep := ask(t, conn, Request{ID: "1", View: ViewCores})
	assert.Equal(t, http.StatusServiceUnavailable, rep.Status)
	assert.Equal(t, 1, s.activeSessions())

	start := time.Now()
	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Eventually(t, func() bool { return s.activeSessions() == 0 }, 2*time.Second, 10*time.Millisecond)

	// sessions opened after shutdown are turned away
	assert.False(t, s.register(&session{}))
}

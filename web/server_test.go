package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jd3nn1s/tirelog"
	"github.com/jd3nn1s/tirelog/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *tirelog.Record {
	rec := &tirelog.Record{
		Session:   "session",
		Timestamp: time.Date(2020, 7, 4, 12, 0, 0, 0, time.UTC),
		HaveTire:  true,
	}
	rec.Tires[0].PressureKPa = tirelog.Reading{State: tirelog.Fresh, Value: 240}
	return rec
}

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestRoutes(t *testing.T) {
	m := metrics.New()
	s := NewServer(m)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	code, body := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","have_record":false,"clients":0}`, body)

	code, _ = get(t, srv, "/api/record")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	code, _ = get(t, srv, "/api/display")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	rec := testRecord()
	var fwd tirelog.Forwarder = s
	assert.NoError(t, fwd.Forward(rec))

	code, body = get(t, srv, "/api/record")
	assert.Equal(t, http.StatusOK, code)
	var gotRec tirelog.Record
	assert.NoError(t, json.Unmarshal([]byte(body), &gotRec))
	assert.Equal(t, rec.Tires, gotRec.Tires)

	code, body = get(t, srv, "/api/display")
	assert.Equal(t, http.StatusOK, code)
	var display tirelog.Display
	assert.NoError(t, json.Unmarshal([]byte(body), &display))
	assert.Equal(t, *tirelog.Project(rec), display)

	m.Advertisement()
	code, body = get(t, srv, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "tirelog_advertisements_total 1")

	resp, err := http.Post(srv.URL+"/api/record", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebsocket(t *testing.T) {
	s := NewServer(nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	first := testRecord()
	assert.NoError(t, s.Forward(first))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	// the latest display is sent on connect
	var display tirelog.Display
	require.NoError(t, conn.ReadJSON(&display))
	assert.Equal(t, *tirelog.Project(first), display)

	second := testRecord()
	second.Tires[0].PressureKPa.State = tirelog.Stale
	assert.NoError(t, s.Forward(second))
	require.NoError(t, conn.ReadJSON(&display))
	assert.Equal(t, "  (34.81)", display.Tires[0].Pressure)

	_, body := get(t, srv, "/health")
	assert.JSONEq(t, `{"status":"ok","have_record":true,"clients":1}`, body)

	conn.Close()
	assert.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.clients) == 0
	}, 3*time.Second, 10*time.Millisecond)

	// forwarding with no clients still works
	assert.NoError(t, s.Forward(first))
}

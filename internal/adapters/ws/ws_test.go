package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	domerrors "github.com/jbctechsolutions/connectsync/internal/domain/errors"
	syncdomain "github.com/jbctechsolutions/connectsync/internal/domain/sync"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
	"github.com/jbctechsolutions/connectsync/internal/infrastructure/testutil"
)

type fakeStarter struct {
	mu      sync.Mutex
	targets []syncdomain.Target
	corrIDs []string
	events  []syncdomain.Event
	err     error
}

func (f *fakeStarter) StartSync(ctx context.Context, target syncdomain.Target, sink ports.EventSink) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.targets = append(f.targets, target)
	f.corrIDs = append(f.corrIDs, logging.CorrelationID(ctx))
	go func() {
		for _, evt := range f.events {
			sink.Publish(evt)
		}
	}()
	return "job-1", nil
}

func newTestServer(t *testing.T, starter SyncStarter, origins ...string) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(NewBroadcaster(logging.Discard()), starter, "a1b2c3", origins, logging.Discard())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func TestNewMessage(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	msg := NewMessage(syncdomain.FileReceived{DeviceID: "d", URL: "file:///a.jpg", Name: "a.jpg"}, now)
	testutil.AssertEqual(t, msg.Type, "file_received")
	testutil.AssertEqual(t, msg.Timestamp, now)

	errMsg := NewMessage(syncdomain.Error{Err: domerrors.ErrStreamClosed, Recoverable: true}, now)
	payload, ok := errMsg.Payload.(ErrorPayload)
	if !ok {
		t.Fatalf("expected ErrorPayload, got %T", errMsg.Payload)
	}
	testutil.AssertEqual(t, payload.Message, domerrors.ErrStreamClosed.Error())
	testutil.AssertEqual(t, payload.Recoverable, true)
}

func TestBroadcaster_PublishesToClients(t *testing.T) {
	s, ts := newTestServer(t, nil)
	a := dial(t, ts)
	b := dial(t, ts)

	testutil.Eventually(t, time.Second, func() bool { return s.broadcaster.ClientCount() == 2 }, "clients registered")

	s.broadcaster.Publish(syncdomain.DevicesChanged{DeviceID: "a1b2c3", Source: "connected"})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		testutil.AssertEqual(t, msg["type"], any("devices_changed"))
		payload := msg["payload"].(map[string]any)
		testutil.AssertEqual(t, payload["device_id"], any("a1b2c3"))
		if _, ok := msg["timestamp"].(string); !ok {
			t.Errorf("missing timestamp in %v", msg)
		}
	}
}

func TestBroadcaster_ClientDisconnect(t *testing.T) {
	s, ts := newTestServer(t, nil)
	conn := dial(t, ts)
	testutil.Eventually(t, time.Second, func() bool { return s.broadcaster.ClientCount() == 1 }, "client registered")

	conn.Close()
	testutil.Eventually(t, time.Second, func() bool { return s.broadcaster.ClientCount() == 0 }, "client removed")
}

func TestBroadcaster_RemoveClientTwice(t *testing.T) {
	b := NewBroadcaster(logging.Discard())
	c := &client{send: make(chan []byte, 1)}
	b.clients[c] = true

	b.RemoveClient(c)
	b.RemoveClient(c)
	testutil.AssertEqual(t, b.ClientCount(), 0)
}

func TestBroadcaster_PublishNilIsIgnored(t *testing.T) {
	b := NewBroadcaster(logging.Discard())
	b.Publish(nil)
	testutil.AssertEqual(t, b.ClientCount(), 0)
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	testutil.AssertNoError(t, err)
	defer resp.Body.Close()

	testutil.AssertEqual(t, resp.StatusCode, http.StatusOK)
	testutil.AssertEqual(t, resp.Header.Get("X-Content-Type-Options"), "nosniff")
	var body map[string]any
	testutil.AssertNoError(t, json.NewDecoder(resp.Body).Decode(&body))
	testutil.AssertEqual(t, body["status"], any("ok"))
}

func TestHandleSync(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		starterErr error
		noStarter  bool
		wantStatus int
		wantTarget syncdomain.Target
	}{
		{"list with default device", http.MethodPost, `{}`, nil, false, http.StatusAccepted, syncdomain.Target{DeviceID: "a1b2c3"}},
		{"thread", http.MethodPost, `{"device_id":"dev","thread_id":7}`, nil, false, http.StatusAccepted, syncdomain.Target{DeviceID: "dev", ThreadID: 7}},
		{"wrong method", http.MethodGet, ``, nil, false, http.StatusMethodNotAllowed, syncdomain.Target{}},
		{"bad json", http.MethodPost, `{`, nil, false, http.StatusBadRequest, syncdomain.Target{}},
		{"negative thread", http.MethodPost, `{"thread_id":-1}`, nil, false, http.StatusBadRequest, syncdomain.Target{}},
		{"starter fails", http.MethodPost, `{}`, errors.New("boom"), false, http.StatusInternalServerError, syncdomain.Target{}},
		{"no starter", http.MethodPost, `{}`, nil, true, http.StatusServiceUnavailable, syncdomain.Target{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			starter := &fakeStarter{err: tt.starterErr}
			var s *Server
			if tt.noStarter {
				s = NewServer(NewBroadcaster(logging.Discard()), nil, "a1b2c3", nil, logging.Discard())
			} else {
				s = NewServer(NewBroadcaster(logging.Discard()), starter, "a1b2c3", nil, logging.Discard())
			}
			defer s.Close()

			req := httptest.NewRequest(tt.method, "/api/sync", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			testutil.AssertEqual(t, rec.Code, tt.wantStatus)
			if tt.wantStatus != http.StatusAccepted {
				return
			}
			var resp SyncResponse
			testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			testutil.AssertEqual(t, resp.JobID, "job-1")
			testutil.AssertEqual(t, resp.Target, tt.wantTarget)
		})
	}
}

func TestHandleSync_RequiresDevice(t *testing.T) {
	s := NewServer(NewBroadcaster(logging.Discard()), &fakeStarter{}, "", nil, logging.Discard())
	defer s.Close()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{}`)))
	testutil.AssertEqual(t, rec.Code, http.StatusBadRequest)
}

func TestHandleSync_RequestID(t *testing.T) {
	starter := &fakeStarter{}
	s := NewServer(NewBroadcaster(logging.Discard()), starter, "a1b2c3", nil, logging.Discard())
	defer s.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{}`))
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	testutil.AssertEqual(t, rec.Code, http.StatusAccepted)
	testutil.AssertEqual(t, rec.Header().Get("X-Request-ID"), "req-42")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(`{}`)))
	generated := rec.Header().Get("X-Request-ID")
	if generated == "" {
		t.Fatal("expected a generated request id")
	}

	starter.mu.Lock()
	defer starter.mu.Unlock()
	testutil.AssertEqual(t, len(starter.corrIDs), 2)
	testutil.AssertEqual(t, starter.corrIDs[0], "req-42")
	testutil.AssertEqual(t, starter.corrIDs[1], generated)
}

func TestHandleSync_BroadcastsJobEvents(t *testing.T) {
	starter := &fakeStarter{events: []syncdomain.Event{
		syncdomain.SyncStarted{Target: syncdomain.Target{DeviceID: "a1b2c3"}},
		syncdomain.SyncComplete{Target: syncdomain.Target{DeviceID: "a1b2c3"}, Reason: syncdomain.ReasonActivity},
	}}
	s, ts := newTestServer(t, starter)
	conn := dial(t, ts)
	testutil.Eventually(t, time.Second, func() bool { return s.broadcaster.ClientCount() == 1 }, "client registered")

	resp, err := http.Post(ts.URL+"/api/sync", "application/json", strings.NewReader(`{}`))
	testutil.AssertNoError(t, err)
	resp.Body.Close()
	testutil.AssertEqual(t, resp.StatusCode, http.StatusAccepted)

	testutil.AssertEqual(t, readMessage(t, conn)["type"], any("sync_started"))
	done := readMessage(t, conn)
	testutil.AssertEqual(t, done["type"], any("sync_complete"))
	testutil.AssertEqual(t, done["payload"].(map[string]any)["reason"], any("activity_deadline"))
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		host    string
		want    bool
	}{
		{"no origin", nil, "", "example.com", true},
		{"same host", nil, "http://example.com", "example.com", true},
		{"localhost", nil, "http://localhost:5173", "127.0.0.1:8787", true},
		{"loopback v6", nil, "http://[::1]:3000", "127.0.0.1:8787", true},
		{"foreign", nil, "http://evil.test", "127.0.0.1:8787", false},
		{"allow-listed", []string{"https://ui.test"}, "https://ui.test", "127.0.0.1:8787", true},
		{"allow-listed host other scheme", []string{"https://ui.test"}, "http://ui.test", "127.0.0.1:8787", true},
		{"allow-list excludes localhost", []string{"https://ui.test"}, "http://localhost", "127.0.0.1:8787", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(NewBroadcaster(logging.Discard()), nil, "", tt.allowed, logging.Discard())
			defer s.Close()
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			testutil.AssertEqual(t, s.checkOrigin(req), tt.want)
		})
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	s := NewServer(NewBroadcaster(logging.Discard()), nil, "", nil, logging.Discard())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	testutil.AssertNoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	testutil.Eventually(t, time.Second, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, "server ready")

	cancel()
	select {
	case err := <-errCh:
		testutil.AssertNoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if s.jobs.Err() == nil {
		t.Error("expected job context cancelled")
	}
}

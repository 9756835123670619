package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/agodwin12/wegoBackend-sub002/internal/accounts"
	"github.com/agodwin12/wegoBackend-sub002/internal/dispatch"
	"github.com/agodwin12/wegoBackend-sub002/internal/ephemeral"
	"github.com/agodwin12/wegoBackend-sub002/internal/geo"
	"github.com/agodwin12/wegoBackend-sub002/internal/notify"
	"github.com/agodwin12/wegoBackend-sub002/internal/observability"
	"github.com/agodwin12/wegoBackend-sub002/internal/storage"
)

type serverFixture struct {
	server *Server
	eph    *ephemeral.MemoryStore
}

func newServerFixture() *serverFixture {
	eph := ephemeral.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	driverWS := notify.NewWSRegistry()
	userWS := notify.NewWSRegistry()
	svc := &dispatch.Service{
		Ephemeral:      eph,
		Availability:   eph,
		Durable:        storage.NewMemoryStore(),
		Locator:        geo.NewIndex(),
		Accounts:       accounts.Static{},
		Notifier:       notify.NewNotifier(logger, driverWS, userWS),
		Timers:         dispatch.NewLocalTimers(),
		Logger:         logger,
		OfferTTL:       20 * time.Second,
		SearchRadiusKm: 5,
		LockTTL:        10 * time.Second,
		MatchedTripTTL: time.Hour,
	}
	srv := NewServer(svc, driverWS, userWS, svc.Locator, nil, logger)
	return &serverFixture{server: srv, eph: eph}
}

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

// waitReachable polls until the registry has a live session for id; the
// handler installs the session just after the handshake completes.
func waitReachable(t *testing.T, reg *notify.WSRegistry, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := reg.Deliver(context.Background(), id, "ping", notify.NoticePayload{Message: "ping"}); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no session for %s", id)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDriverWSHandshakeAndDelivery(t *testing.T) {
	f := newServerFixture()
	srv := httptest.NewServer(f.server)
	defer srv.Close()
	base := testutil.ToFloat64(observability.DriversOnline)

	conn := dialWS(t, srv, "/ws/driver/d1")
	defer conn.Close()
	waitReachable(t, f.server.DriverWS, "d1")
	if testutil.ToFloat64(observability.DriversOnline)-base != 1 {
		t.Fatal("live driver session not counted")
	}

	if err := f.server.DriverWS.Deliver(context.Background(), "d1", "notice",
		notify.NoticePayload{TripID: "t1", Message: "hello"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got notify.NoticePayload
	for got.TripID != "t1" {
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	if got.Message != "hello" {
		t.Fatalf("payload = %+v", got)
	}

	conn.Close()
	for deadline := time.Now().Add(2 * time.Second); ; {
		if testutil.ToFloat64(observability.DriversOnline) == base {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("gauge not decremented after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUserWSHandshake(t *testing.T) {
	f := newServerFixture()
	srv := httptest.NewServer(f.server)
	defer srv.Close()
	base := testutil.ToFloat64(observability.DriversOnline)

	conn := dialWS(t, srv, "/ws/user/p1")
	defer conn.Close()
	waitReachable(t, f.server.UserWS, "p1")
	if testutil.ToFloat64(observability.DriversOnline) != base {
		t.Fatal("user sessions must not count as online drivers")
	}
}

func TestDriverWSReconnectStaysReachable(t *testing.T) {
	f := newServerFixture()
	srv := httptest.NewServer(f.server)
	defer srv.Close()

	first := dialWS(t, srv, "/ws/driver/d1")
	waitReachable(t, f.server.DriverWS, "d1")

	second := dialWS(t, srv, "/ws/driver/d1")
	defer second.Close()

	// registering the second connection closes the first one
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}
	// the closed connection's reader must not tear down the fresh session
	time.Sleep(200 * time.Millisecond)

	if err := f.server.DriverWS.Deliver(context.Background(), "d1", "notice",
		notify.NoticePayload{TripID: "t2", Message: "still here"}); err != nil {
		t.Fatalf("driver unreachable after reconnect: %v", err)
	}
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got notify.NoticePayload
	for got.TripID != "t2" {
		if err := second.ReadJSON(&got); err != nil {
			t.Fatalf("read on reconnected session: %v", err)
		}
	}
}

func TestDriverLocationMarksOnline(t *testing.T) {
	f := newServerFixture()
	srv := httptest.NewServer(f.server)
	defer srv.Close()

	body := `{"id":"d7","loc":{"lat":4.05,"lng":9.7}}`
	resp, err := http.Post(srv.URL+"/internal/driver/locations", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	av, err := f.eph.Availability(context.Background(), "d7")
	if err != nil {
		t.Fatal(err)
	}
	if !av.Online {
		t.Fatal("driver not marked online")
	}
}

package client

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

	"github.com/DarthNec/Fonana-sub001/pkg/channel"
	"github.com/DarthNec/Fonana-sub001/pkg/event"
)

// wsServer is a minimal server-side peer: it accepts upgrades and
// exposes each connection's parsed inbound frames.
type wsServer struct {
	srv   *httptest.Server
	conns chan *serverConn
}

type serverConn struct {
	ws     *websocket.Conn
	frames chan event.InboundFrame
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{conns: make(chan *serverConn, 4)}
	up := websocket.Upgrader{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sc := &serverConn{ws: ws, frames: make(chan event.InboundFrame, 16)}
		s.conns <- sc
		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				close(sc.frames)
				return
			}
			var f event.InboundFrame
			if json.Unmarshal(raw, &f) == nil {
				sc.frames <- f
			}
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsServer) accept(t *testing.T) *serverConn {
	t.Helper()
	select {
	case sc := <-s.conns:
		return sc
	case <-time.After(2 * time.Second):
		t.Fatal("no connection arrived")
		return nil
	}
}

func (sc *serverConn) next(t *testing.T) event.InboundFrame {
	t.Helper()
	select {
	case f, ok := <-sc.frames:
		if !ok {
			t.Fatal("connection closed before frame")
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame arrived")
		return event.InboundFrame{}
	}
}

func (sc *serverConn) send(t *testing.T, payload string) {
	t.Helper()
	if err := sc.ws.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

func staticToken(context.Context) (string, error) { return "test-token", nil }

func newTestTransport(t *testing.T, url string, opt TransportOptions) *Transport {
	t.Helper()
	opt.URL = url
	if opt.Token == nil {
		opt.Token = staticToken
	}
	if opt.BaseDelay == 0 {
		opt.BaseDelay = 10 * time.Millisecond
	}
	tr, err := NewTransport(opt)
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	t.Cleanup(tr.Close)
	return tr
}

func waitState(t *testing.T, tr *Transport, want State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for tr.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state=%v want %v", tr.State(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestQueuedFramesFlushInOrderOnConnect(t *testing.T) {
	s := newWSServer(t)
	tr := newTestTransport(t, s.url(), TransportOptions{})

	// Requests issued before Connect must queue, not vanish.
	tr.Subscribe(channel.Post("p1"))
	tr.Ping()

	tr.Connect(context.Background())
	sc := s.accept(t)

	first := sc.next(t)
	if first.Type != event.FrameSubscribe {
		t.Fatalf("first frame=%q", first.Type)
	}
	var ch map[string]string
	if err := json.Unmarshal(first.Channel, &ch); err != nil || ch["postId"] != "p1" {
		t.Fatalf("channel=%s err=%v", first.Channel, err)
	}
	if second := sc.next(t); second.Type != event.FramePing {
		t.Fatalf("second frame=%q", second.Type)
	}
	// The subscription replay repeats the subscribe; the server treats
	// it as idempotent.
	if third := sc.next(t); third.Type != event.FrameSubscribe {
		t.Fatalf("third frame=%q", third.Type)
	}
}

func TestResubscribesAfterServerDrop(t *testing.T) {
	s := newWSServer(t)
	tr := newTestTransport(t, s.url(), TransportOptions{})

	tr.Connect(context.Background())
	waitState(t, tr, StateConnected)
	tr.Subscribe(channel.Notifications("u1"))

	sc := s.accept(t)
	if f := sc.next(t); f.Type != event.FrameSubscribe {
		t.Fatalf("frame=%q", f.Type)
	}
	sc.ws.Close()

	waitState(t, tr, StateConnected)
	sc2 := s.accept(t)
	f := sc2.next(t)
	if f.Type != event.FrameSubscribe {
		t.Fatalf("replayed frame=%q", f.Type)
	}
	var ch map[string]string
	if err := json.Unmarshal(f.Channel, &ch); err != nil || ch["type"] != "notifications" {
		t.Fatalf("channel=%s err=%v", f.Channel, err)
	}
}

func TestGivesUpAfterReconnectBudgetAndConnectRestores(t *testing.T) {
	// Reserve an address with nothing listening on it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	tr := newTestTransport(t, "ws://"+addr+"/ws", TransportOptions{
		BaseDelay:   time.Millisecond,
		MaxAttempts: 3,
	})
	tr.Connect(context.Background())
	waitState(t, tr, StateGaveUp)

	// A server appears at the same address; the terminal state holds
	// until Connect is called again.
	ln2, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("relisten: %v", err)
	}
	up := websocket.Upgrader{}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ws, err := up.Upgrade(w, r, nil); err == nil {
			defer ws.Close()
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}
	})}
	go srv.Serve(ln2)
	t.Cleanup(func() { srv.Close() })

	time.Sleep(20 * time.Millisecond)
	if got := tr.State(); got != StateGaveUp {
		t.Fatalf("state=%v, left terminal state without Connect", got)
	}

	tr.Connect(context.Background())
	waitState(t, tr, StateConnected)
}

func TestUnreadCountTracksNotificationTraffic(t *testing.T) {
	s := newWSServer(t)
	unread := make(chan event.UnreadData, 1)
	tr := newTestTransport(t, s.url(), TransportOptions{
		Manager:  NewManager(ManagerOptions{}),
		OnUnread: func(d event.UnreadData) { unread <- d },
	})

	tr.Connect(context.Background())
	waitState(t, tr, StateConnected)
	sc := s.accept(t)

	sc.send(t, `{"type":"unread_notifications","data":{"notifications":[],"count":7}}`)
	select {
	case d := <-unread:
		if d.Count != 7 {
			t.Fatalf("count=%d", d.Count)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("unread hook never fired")
	}

	waitUnread := func(want int) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for tr.UnreadCount() != want {
			if time.Now().After(deadline) {
				t.Fatalf("unread=%d want %d", tr.UnreadCount(), want)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	sc.send(t, `{"type":"notification","id":"n1","timestamp":1700000000000,"title":"hi"}`)
	waitUnread(8)
	sc.send(t, `{"type":"notification_read","id":"n2","timestamp":1700000000001,"notificationId":"n1"}`)
	waitUnread(7)
	sc.send(t, `{"type":"notifications_cleared","id":"n3","timestamp":1700000000002}`)
	waitUnread(0)
}

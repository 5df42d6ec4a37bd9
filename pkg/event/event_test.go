package event

import (
	"encoding/json"
	"testing"
)

func TestEventWireRoundTrip(t *testing.T) {
	ev := New(PostLiked, map[string]any{"postId": "p1", "likesCount": float64(6)})
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// Domain events are flat on the wire: payload fields sit next to type.
	var flat map[string]any
	if err := json.Unmarshal(b, &flat); err != nil {
		t.Fatalf("unmarshal flat: %v", err)
	}
	if flat["type"] != "post_liked" {
		t.Fatalf("type=%v", flat["type"])
	}
	if flat["postId"] != "p1" {
		t.Fatalf("postId not flattened: %v", flat)
	}
	if _, ok := flat["data"]; ok {
		t.Fatalf("domain event must not nest payload under data: %s", b)
	}

	var got Event
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if got.Kind != PostLiked || got.ID != ev.ID {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Data["likesCount"] != float64(6) {
		t.Fatalf("payload lost: %+v", got.Data)
	}
}

func TestUnmarshalRejectsUnknownKind(t *testing.T) {
	var ev Event
	if err := json.Unmarshal([]byte(`{"type":"payment_settled"}`), &ev); err == nil {
		t.Fatal("expected error for kind outside the closed set")
	}
	if err := json.Unmarshal([]byte(`{"postId":"p1"}`), &ev); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestEmitterDispatchOrderAndRemoval(t *testing.T) {
	em := NewEmitter()
	var calls []string
	em.On(Notification, func(Event) { calls = append(calls, "a") })
	offB := em.On(Notification, func(Event) { calls = append(calls, "b") })
	em.On(PostLiked, func(Event) { calls = append(calls, "other") })

	em.Emit(New(Notification, nil))
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Fatalf("calls=%v", calls)
	}

	offB()
	offB() // removal is idempotent
	calls = nil
	em.Emit(New(Notification, nil))
	if len(calls) != 1 || calls[0] != "a" {
		t.Fatalf("calls after removal=%v", calls)
	}
	if n := em.HandlerCount(Notification); n != 1 {
		t.Fatalf("HandlerCount=%d", n)
	}
}

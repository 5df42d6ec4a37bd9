package channel

import (
	"encoding/json"
	"testing"
)

func TestKeyDerivationIsDistinctPerKind(t *testing.T) {
	// Same payload under every kind must still yield distinct keys.
	chans := []Channel{
		Creator("42"),
		Notifications("42"),
		Feed("42"),
		Post("42"),
	}
	seen := map[string]Kind{}
	for _, c := range chans {
		k := c.Key()
		if k == "" {
			t.Fatalf("empty key for %v", c)
		}
		if prev, dup := seen[k]; dup {
			t.Fatalf("key collision: %s and %s both derive %q", prev, c.Kind, k)
		}
		seen[k] = c.Kind
	}
}

func TestKeyIsDeterministic(t *testing.T) {
	a := Post("p1").Key()
	b := Post("p1").Key()
	if a != b {
		t.Fatalf("same channel derived different keys: %q vs %q", a, b)
	}
	if a == Post("p2").Key() {
		t.Fatalf("different posts share key %q", a)
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantKey string
		wantErr bool
	}{
		{"creator", `{"type":"creator","userId":"u1"}`, "creator:u1", false},
		{"notifications", `{"type":"notifications","userId":"u1"}`, "notifications:u1", false},
		{"feed", `{"type":"feed","userId":"u1"}`, "feed:u1", false},
		{"post", `{"type":"post","postId":"p9"}`, "post:p9", false},
		{"missing type", `{"userId":"u1"}`, "", true},
		{"unknown type", `{"type":"dm","userId":"u1"}`, "", true},
		{"post without id", `{"type":"post"}`, "", true},
		{"empty", ``, "", true},
		{"garbage", `{"type":`, "", true},
	}
	for _, tc := range cases {
		c, err := Parse(json.RawMessage(tc.raw))
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got %v", tc.name, c)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if c.Key() != tc.wantKey {
			t.Fatalf("%s: key=%q want %q", tc.name, c.Key(), tc.wantKey)
		}
	}
}

package cache

import (
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	c := New()

	if err := c.Set("tmdb:search:inception", []string{"a", "b"}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got []string
	ok, err := c.Get("tmdb:search:inception", &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("unexpected value: %v", got)
	}
}

func TestMissOnUnknownKey(t *testing.T) {
	c := New()

	var got string
	ok, err := c.Get("never-set", &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestExpiryBehavesLikeNeverSet(t *testing.T) {
	c := New()
	now := time.Now()
	c.now = func() time.Time { return now }

	if err := c.Set("k", 42, 10*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got int
	if ok, _ := c.Get("k", &got); !ok || got != 42 {
		t.Fatalf("expected hit before expiry, got ok=%v v=%d", ok, got)
	}

	// One instant short of the TTL is still a hit.
	now = now.Add(10*time.Minute - time.Nanosecond)
	if ok, _ := c.Get("k", &got); !ok {
		t.Fatal("expected hit just before the TTL elapses")
	}

	// At exactly the TTL the entry is expired and must be evicted.
	now = now.Add(time.Nanosecond)
	if ok, _ := c.Get("k", &got); ok {
		t.Fatal("expected miss once the full TTL has elapsed")
	}

	// A later Get at the original time must still miss: the entry is gone.
	now = time.Now()
	if ok, _ := c.Get("k", &got); ok {
		t.Fatal("expected evicted entry to stay gone")
	}
}

func TestSetOverwrites(t *testing.T) {
	c := New()

	c.Set("k", "old", time.Minute)
	c.Set("k", "new", time.Minute)

	var got string
	if ok, _ := c.Get("k", &got); !ok || got != "new" {
		t.Errorf("expected last write to win, got ok=%v v=%q", ok, got)
	}
}

func TestDecodedValueDoesNotAliasCachedValue(t *testing.T) {
	c := New()

	c.Set("k", []string{"a"}, time.Minute)

	var first []string
	c.Get("k", &first)
	first[0] = "mutated"

	var second []string
	c.Get("k", &second)
	if second[0] != "a" {
		t.Errorf("cached value was mutated through a returned slice: %v", second)
	}
}

func TestKeyNormalization(t *testing.T) {
	cases := []struct {
		parts []string
		want  string
	}{
		{[]string{"tmdb", "search", "Inception"}, "tmdb:search:inception"},
		{[]string{"tmdb", "search", "  The   Matrix "}, "tmdb:search:the matrix"},
		{[]string{"jikan", "details", "5114"}, "jikan:details:5114"},
	}

	for _, tc := range cases {
		if got := Key(tc.parts...); got != tc.want {
			t.Errorf("Key(%v) = %q, want %q", tc.parts, got, tc.want)
		}
	}
}

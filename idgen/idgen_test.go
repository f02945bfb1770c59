package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestUUIDv7(t *testing.T) {
	gen := UUIDv7()
	a, b := gen(), gen()
	if a == b {
		t.Fatalf("duplicate ids: %s", a)
	}
	u, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("parse %q: %v", a, err)
	}
	if u.Version() != 7 {
		t.Errorf("version: got %d, want 7", u.Version())
	}
	// v7 ids sort by creation time.
	if a > b {
		t.Errorf("ids not time-ordered: %s > %s", a, b)
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("rescan_", UUIDv7())()
	if !strings.HasPrefix(id, "rescan_") {
		t.Errorf("got %q, want rescan_ prefix", id)
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence("s")
	if got := gen(); got != "s1" {
		t.Errorf("first: got %q, want s1", got)
	}
	if got := gen(); got != "s2" {
		t.Errorf("second: got %q, want s2", got)
	}

	gen = Sequence("")
	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, dup := seen.LoadOrStore(gen(), true); dup {
				t.Error("duplicate id under concurrency")
			}
		}()
	}
	wg.Wait()
}

func TestNew(t *testing.T) {
	if _, err := uuid.Parse(New()); err != nil {
		t.Errorf("New: %v", err)
	}
}

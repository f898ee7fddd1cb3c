package pipeline

import (
	"testing"
	"time"
)

func TestBufferIdleDetection(t *testing.T) {
	b := newBuffer()
	base := time.Now()

	b.append("quiet", callEvent("quiet", "m", "f"), base)
	b.append("busy", callEvent("busy", "m", "f"), base)
	b.append("busy", callEvent("busy", "m", "g"), base.Add(4*time.Second))

	ids := b.idle(base.Add(5*time.Second), 5*time.Second)
	if len(ids) != 1 || ids[0] != "quiet" {
		t.Fatalf("idle = %v, want [quiet]", ids)
	}
}

func TestBufferPromoteSnapshotsEvents(t *testing.T) {
	b := newBuffer()
	now := time.Now()
	b.append("c", callEvent("c", "m", "f"), now)

	idleAt := now.Add(time.Minute)
	events, e, ok := b.promote("c", idleAt, time.Second)
	if !ok || e == nil || len(events) != 1 {
		t.Fatalf("promote = %v, %v, %v", events, e, ok)
	}

	// Double promotion must fail, and a promoted entry is no longer idle.
	if _, _, ok := b.promote("c", idleAt, time.Second); ok {
		t.Fatal("second promote succeeded")
	}
	if ids := b.idle(now.Add(time.Hour), time.Second); len(ids) != 0 {
		t.Fatalf("promoted entry reported idle: %v", ids)
	}
}

func TestBufferPromoteRefusesRevivedEntry(t *testing.T) {
	b := newBuffer()
	base := time.Now()
	b.append("c", callEvent("c", "m", "f"), base)

	// A late event lands between the idle scan and the promotion attempt:
	// the entry is no longer idle, so promotion must back off.
	sweepAt := base.Add(5 * time.Second)
	b.append("c", callEvent("c", "m", "g"), sweepAt.Add(-time.Millisecond))

	if _, _, ok := b.promote("c", sweepAt, 5*time.Second); ok {
		t.Fatal("revived entry was promoted")
	}

	// Once it goes quiet again, promotion picks up both events.
	events, _, ok := b.promote("c", sweepAt.Add(10*time.Second), 5*time.Second)
	if !ok || len(events) != 2 {
		t.Fatalf("promote after quiet = %v, %v", events, ok)
	}
}

func TestBufferEventsAfterPromotionStartFreshEntry(t *testing.T) {
	b := newBuffer()
	now := time.Now()
	b.append("c", callEvent("c", "m", "f"), now)

	_, promoted, _ := b.promote("c", now.Add(time.Minute), time.Second)

	// A late event for the same correlation begins a new accumulation.
	b.append("c", callEvent("c", "m", "g"), now)

	// Releasing the promoted entry must not discard the fresh one.
	b.release("c", promoted)
	if b.size() != 1 {
		t.Fatalf("size = %d, want 1", b.size())
	}

	events, _, ok := b.promote("c", now.Add(time.Minute), time.Second)
	if !ok || len(events) != 1 || events[0].Function != "g" {
		t.Fatalf("fresh entry = %v, %v", events, ok)
	}
}

func TestBufferRelease(t *testing.T) {
	b := newBuffer()
	now := time.Now()
	b.append("c", callEvent("c", "m", "f"), now)
	_, e, _ := b.promote("c", now.Add(time.Minute), time.Second)
	b.release("c", e)
	if b.size() != 0 {
		t.Fatalf("size = %d, want 0", b.size())
	}
	// Releasing again is harmless.
	b.release("c", e)
}

func TestBufferPromoteMissing(t *testing.T) {
	b := newBuffer()
	if _, _, ok := b.promote("nope", time.Now(), time.Second); ok {
		t.Fatal("promote of absent correlation succeeded")
	}
}

func TestInFlightClaims(t *testing.T) {
	f := newInFlight()
	if !f.tryAdd("a") {
		t.Fatal("first claim failed")
	}
	if f.tryAdd("a") {
		t.Fatal("duplicate claim succeeded")
	}
	if !f.tryAdd("b") {
		t.Fatal("independent claim failed")
	}
	f.remove("a")
	if !f.tryAdd("a") {
		t.Fatal("reclaim after remove failed")
	}
	if f.size() != 2 {
		t.Fatalf("size = %d, want 2", f.size())
	}
}

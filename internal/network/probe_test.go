package network

import (
	"testing"
	"time"

	"github.com/neighborhood-lab/care-commons-sub007/internal/clock"
)

func TestIsOnlineReflectsInitialState(t *testing.T) {
	p := New(true, 50*time.Millisecond, clock.New())
	if !p.IsOnline() {
		t.Fatal("expected initial state online")
	}
}

func TestSetDebouncesBounces(t *testing.T) {
	p := New(true, 100*time.Millisecond, clock.New())
	ch, cancel := p.Subscribe()
	defer cancel()

	p.Set(false)
	p.Set(true) // bounce back within the debounce window
	p.Set(false)

	select {
	case v := <-ch:
		t.Fatalf("expected no transition to fire yet, got %v", v)
	case <-time.After(30 * time.Millisecond):
	}

	select {
	case v := <-ch:
		if v {
			t.Errorf("expected final settled state false, got true")
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatal("expected a transition to fire after debounce window")
	}

	if p.IsOnline() {
		t.Errorf("expected IsOnline() false after transition")
	}
}

func TestSetSameValueCancelsPendingTransition(t *testing.T) {
	p := New(true, 50*time.Millisecond, clock.New())
	ch, cancel := p.Subscribe()
	defer cancel()

	p.Set(false)
	p.Set(true) // back to current value before debounce fires; no transition expected

	select {
	case v := <-ch:
		t.Fatalf("expected no transition, got %v", v)
	case <-time.After(150 * time.Millisecond):
	}
}

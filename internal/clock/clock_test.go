package clock

import (
	"math/rand"
	"testing"
	"time"
)

func TestHasSysClockChangedWithRealClock(t *testing.T) {
	c := New()
	for i := 0; i < 10; i++ {
		e1 := c.Monotonic()
		t1 := c.Now()

		d := time.Duration(rand.Int63n(50)) * time.Millisecond
		time.Sleep(d)

		t2 := c.Now()
		e2 := c.Monotonic()

		if HasSysClockChanged(t1, t2, e1, e2) {
			t.Errorf("clock found changed incorrectly: e1=%v t1=%v t2=%v e2=%v", e1, t1, t2, e2)
		}
	}
}

func TestHasSysClockChangedFakeClock(t *testing.T) {
	e1 := 2000 * time.Millisecond
	t1 := time.Now()

	t2 := t1.Add(200 * time.Millisecond)
	e2 := e1 + 300*time.Millisecond
	if HasSysClockChanged(t1, t2, e1, e2) {
		t.Errorf("small discrepancy should not trip")
	}

	t2 = t1.Add(200 * time.Millisecond)
	e2 = e1 + 3000*time.Millisecond
	if !HasSysClockChanged(t1, t2, e1, e2) {
		t.Errorf("large discrepancy should trip")
	}

	t2 = t1.Add(-200 * time.Millisecond)
	e2 = e1 + 300*time.Millisecond
	if !HasSysClockChanged(t1, t2, e1, e2) {
		t.Errorf("negative wall delta should trip")
	}
}

func TestNowMillisMonotonicIncreasing(t *testing.T) {
	c := New()
	a := c.NowMillis()
	time.Sleep(2 * time.Millisecond)
	b := c.NowMillis()
	if b < a {
		t.Errorf("NowMillis went backwards: %d -> %d", a, b)
	}
}

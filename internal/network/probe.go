// Package network implements the Network Probe (spec.md C3): a debounced
// online/offline signal the Sync Manager subscribes to.
package network

import (
	"sync"
	"time"

	"github.com/neighborhood-lab/care-commons-sub007/internal/clock"
)

// Prober reports connectivity and is set directly by whatever platform
// layer owns the real network stack (Wi-Fi/cellular reachability on a
// mobile device is outside this core's scope, matching spec.md's "opaque
// to the core" treatment of auth tokens).
type Prober interface {
	Set(online bool)
}

// Probe is the Network Probe. Raw Set calls are debounced: a state that
// doesn't hold for at least debounce are coalesced away so a flapping
// radio doesn't fire a transition per bounce.
type Probe struct {
	mu        sync.Mutex
	online    bool
	debounce  time.Duration
	clock     clock.Clock
	listeners []chan bool
	pending   *time.Timer
	pendingTo bool
}

var _ Prober = (*Probe)(nil)

// New returns a Probe that starts in the online state given by initial and
// debounces raw signals for debounce (spec.md: "debounces bounces ≤ 500ms").
func New(initial bool, debounce time.Duration, clk clock.Clock) *Probe {
	return &Probe{online: initial, debounce: debounce, clock: clk}
}

// IsOnline reports the current, debounced connectivity state.
func (p *Probe) IsOnline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// Subscribe returns a channel that receives exactly one value per
// debounced transition, true for online and false for offline. The
// returned cancel func stops delivery and closes the channel.
func (p *Probe) Subscribe() (ch <-chan bool, cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := make(chan bool, 1)
	p.listeners = append(p.listeners, c)
	cancelFn := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, l := range p.listeners {
			if l == c {
				p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
				close(c)
				return
			}
		}
	}
	return c, cancelFn
}

// Set records a raw connectivity observation. It is debounced: if a
// pending observation of a different value is already scheduled within
// the debounce window, the later call wins and the timer restarts.
func (p *Probe) Set(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if online == p.online {
		if p.pending != nil {
			p.pending.Stop()
			p.pending = nil
		}
		return
	}

	p.pendingTo = online
	if p.pending != nil {
		p.pending.Stop()
	}
	p.pending = time.AfterFunc(p.debounce, func() {
		p.commit()
	})
}

func (p *Probe) commit() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pendingTo == p.online {
		p.pending = nil
		return
	}
	p.online = p.pendingTo
	p.pending = nil

	for _, l := range p.listeners {
		select {
		case l <- p.online:
		default:
			// slow subscriber: drop and let it observe IsOnline() on next read
			select {
			case <-l:
			default:
			}
			l <- p.online
		}
	}
}

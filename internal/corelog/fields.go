// Package corelog supplies the sync core's structured logging
// conventions on top of go.uber.org/zap. Components take a *zap.Logger at
// construction time rather than reaching for a package-level logger, per
// the "no implicit module state" rule (spec.md §9).
package corelog

import (
	"time"

	"go.uber.org/zap"
)

// Fields is a chained builder for a standard set of zap fields, mirroring
// the shape of a component/operation/resource logging call without
// requiring every call site to spell out field names by hand.
type Fields []zap.Field

// NewFields starts an empty field set.
func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	return append(f, zap.String("component", name))
}

func (f Fields) Operation(name string) Fields {
	return append(f, zap.String("operation", name))
}

func (f Fields) Resource(kind, id string) Fields {
	f = append(f, zap.String("resource_kind", kind))
	if id != "" {
		f = append(f, zap.String("resource_id", id))
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	return append(f, zap.Int64("duration_ms", d.Milliseconds()))
}

func (f Fields) Err(err error) Fields {
	if err == nil {
		return f
	}
	return append(f, zap.Error(err))
}

func (f Fields) Count(n int) Fields {
	return append(f, zap.Int("count", n))
}

func (f Fields) Custom(key string, value interface{}) Fields {
	return append(f, zap.Any(key, value))
}

// QueueFields is the standard field set for an offline-queue log line.
func QueueFields(actionID string, kind string, priority int) Fields {
	return NewFields().Component("offline_queue").Custom("action_id", actionID).
		Custom("action_kind", kind).Custom("priority", priority)
}

// SyncFields is the standard field set for a sync-manager log line.
func SyncFields(state string) Fields {
	return NewFields().Component("sync_manager").Custom("state", state)
}

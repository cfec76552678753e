// Package changelog records every mutation applied to a network or schedule.
// A ChangeLog belongs to the object that created it and is never shared between instances.
package changelog

import (
	"maps"
	"slices"
	"time"
)

type Change string

const (
	Add     Change = "add"
	Modify  Change = "modify"
	Reindex Change = "reindex"
)

type ObjectType string

const (
	Node ObjectType = "node"
	Link ObjectType = "link"
	Stop ObjectType = "stop"
)

type Entry struct {
	Seq        uint64         `json:"seq"`
	Time       time.Time      `json:"time"`
	Change     Change         `json:"change"`
	ObjectType ObjectType     `json:"object_type"`
	ID         string         `json:"id"`
	OldID      string         `json:"old_id,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type ChangeLog struct {
	entries []Entry
	seq     uint64
	now     func() time.Time
}

func New() *ChangeLog {
	return &ChangeLog{now: time.Now}
}

// NewWithClock is New with a fixed time source.
func NewWithClock(now func() time.Time) *ChangeLog {
	return &ChangeLog{now: now}
}

// Append records one change. Attributes are copied shallowly.
func (c *ChangeLog) Append(change Change, objType ObjectType, id string, attrs map[string]any) Entry {
	return c.append(Entry{Change: change, ObjectType: objType, ID: id, Attributes: attrs})
}

// AppendReindex records an object that changed id from oldID to newID.
func (c *ChangeLog) AppendReindex(objType ObjectType, oldID, newID string, attrs map[string]any) Entry {
	return c.append(Entry{Change: Reindex, ObjectType: objType, ID: newID, OldID: oldID, Attributes: attrs})
}

func (c *ChangeLog) append(e Entry) Entry {
	c.seq++
	e.Seq = c.seq
	e.Time = c.now()
	if e.Attributes != nil {
		e.Attributes = maps.Clone(e.Attributes)
	}
	c.entries = append(c.entries, e)
	return e
}

// Entries returns a copy of the entries recorded since the last Flush.
func (c *ChangeLog) Entries() []Entry {
	return slices.Clone(c.entries)
}

func (c *ChangeLog) Len() int {
	return len(c.entries)
}

// Flush hands the pending entries to the caller and empties the log.
// Sequence numbers keep counting across flushes.
func (c *ChangeLog) Flush() []Entry {
	out := c.entries
	c.entries = nil
	return out
}

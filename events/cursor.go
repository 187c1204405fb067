package events

import (
	"github.com/opendlt/aptos-toolkit/types"
)

// Cursor remembers the last delivered sequence number of one event stream.
// It only moves forward.
type Cursor struct {
	last  uint64
	valid bool
}

// NewCursor creates a cursor positioned at seq
func NewCursor(seq uint64) Cursor {
	return Cursor{last: seq, valid: true}
}

// Last returns the last delivered sequence number, if any
func (c *Cursor) Last() (uint64, bool) {
	return c.last, c.valid
}

// Accepts reports whether seq has not been delivered yet
func (c *Cursor) Accepts(seq uint64) bool {
	return !c.valid || seq > c.last
}

// Advance moves the cursor to seq if seq is new and reports whether it moved
func (c *Cursor) Advance(seq uint64) bool {
	if !c.Accepts(seq) {
		return false
	}
	c.last = seq
	c.valid = true
	return true
}

// Start returns the page start to request from the node
func (c *Cursor) Start() *uint64 {
	if !c.valid {
		return nil
	}
	start := c.last
	return &start
}

// Filter returns the events of a poll that are newer than the cursor, advancing it
// past each one in order
func (c *Cursor) Filter(batch []types.Event) []types.Event {
	fresh := make([]types.Event, 0, len(batch))
	for _, ev := range batch {
		if c.Advance(ev.SequenceNumber.Uint64()) {
			fresh = append(fresh, ev)
		}
	}
	return fresh
}

package events

import (
	"reflect"
	"strings"
)

// FilterEvents keeps the events whose data matches every key/value in filters
func FilterEvents(items []EventData, filters map[string]any) []EventData {
	out := make([]EventData, 0, len(items))
	for _, ev := range items {
		if matchesAll(ev, filters) {
			out = append(out, ev)
		}
	}
	return out
}

func matchesAll(ev EventData, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := ev.Data[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// GroupBy groups events by the string value of a data field. Events without
// the field, or with a non-string value, are left out.
func GroupBy(items []EventData, field string) map[string][]EventData {
	grouped := make(map[string][]EventData)
	for _, ev := range items {
		key, ok := ev.Data[field].(string)
		if !ok {
			continue
		}
		grouped[key] = append(grouped[key], ev)
	}
	return grouped
}

// ExtractField returns a data field of an event
func ExtractField(ev EventData, field string) (any, bool) {
	v, ok := ev.Data[field]
	return v, ok
}

// IsEventType reports whether the event has exactly the given type
func IsEventType(ev EventData, eventType string) bool {
	return ev.EventType == eventType
}

// TypeContains returns a predicate matching event types that contain any of the substrings
func TypeContains(substrings ...string) Predicate {
	return func(ev EventData) bool {
		for _, s := range substrings {
			if strings.Contains(ev.EventType, s) {
				return true
			}
		}
		return false
	}
}

// ProcessBatch runs fn over every event and returns the failures keyed by sequence number
func ProcessBatch(items []EventData, fn func(EventData) error) map[uint64]error {
	failures := make(map[uint64]error)
	for _, ev := range items {
		if err := fn(ev); err != nil {
			failures[ev.SequenceNumber] = err
		}
	}
	return failures
}

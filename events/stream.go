package events

import (
	"context"
	"fmt"

	"github.com/opendlt/aptos-toolkit/types"
)

// EventData is an event annotated with where and when it was observed
type EventData struct {
	Address        string         `json:"address"`
	Handle         string         `json:"handle"`
	EventType      string         `json:"event_type"`
	Data           map[string]any `json:"event_data"`
	SequenceNumber uint64         `json:"sequence_number"`
	Version        uint64         `json:"version"`
	BlockHeight    uint64         `json:"block_height"`
	Source         string         `json:"source,omitempty"`
}

// NewEventData converts a raw event
func NewEventData(address, handle string, ev types.Event, height uint64) EventData {
	return EventData{
		Address:        address,
		Handle:         handle,
		EventType:      ev.Type,
		Data:           ev.Data,
		SequenceNumber: ev.SequenceNumber.Uint64(),
		Version:        ev.Version.Uint64(),
		BlockHeight:    height,
	}
}

// Predicate decides whether an event is forwarded
type Predicate func(EventData) bool

// Stream binds a listener to a hub: every new event that passes the filter is
// published as EventData
type Stream struct {
	listener *Listener
	hub      *Hub[EventData]
	filter   Predicate
	heights  HeightSource
	source   string
}

// NewStream creates a stream. filter and heights may be nil.
func NewStream(listener *Listener, hub *Hub[EventData], filter Predicate, heights HeightSource) (*Stream, error) {
	if listener == nil {
		return nil, fmt.Errorf("listener cannot be nil")
	}
	if hub == nil {
		return nil, fmt.Errorf("hub cannot be nil")
	}
	return &Stream{
		listener: listener,
		hub:      hub,
		filter:   filter,
		heights:  heights,
		source:   hub.Name(),
	}, nil
}

// Listener returns the underlying listener
func (s *Stream) Listener() *Listener {
	return s.listener
}

// Run forwards events until the context ends or the listener is stopped
func (s *Stream) Run(ctx context.Context) error {
	return s.listener.Run(ctx, s.handler(ctx), nil)
}

// Start runs the stream in a goroutine
func (s *Stream) Start(ctx context.Context) {
	s.listener.Start(ctx, s.handler(ctx), nil)
}

// Stop stops the underlying listener
func (s *Stream) Stop() {
	s.listener.Stop()
}

func (s *Stream) handler(ctx context.Context) Handler {
	cfg := s.listener.config
	return func(ev types.Event) {
		var height uint64
		if s.heights != nil {
			if h, err := s.heights.GetChainHeight(ctx); err == nil {
				height = h
			}
		}

		data := NewEventData(cfg.Address, cfg.Handle, ev, height)
		data.Source = s.source
		if s.filter != nil && !s.filter(data) {
			return
		}
		s.hub.Publish(data)
	}
}

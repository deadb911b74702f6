package app

import (
	"github.com/rs/zerolog/log"

	"github.com/obeisser/wledd/internal/eventbus"
	"github.com/obeisser/wledd/internal/storage"
	"github.com/obeisser/wledd/internal/wled"
)

// HostSink is the host-facing attribute surface: every batch published by
// the synchronizer is persisted to the attribute store and fanned out on
// the event bus.
type HostSink struct {
	store *storage.AttributeStore
	bus   *eventbus.Bus
}

// NewHostSink creates the sink.
func NewHostSink(store *storage.AttributeStore, bus *eventbus.Bus) *HostSink {
	return &HostSink{store: store, bus: bus}
}

// Publish implements wled.Sink.
func (s *HostSink) Publish(updates []wled.Attribute) {
	for _, attr := range updates {
		if err := s.store.Set(attr.Name, attr.Value, attr.Unit); err != nil {
			log.Error().Err(err).Str("attribute", attr.Name).Msg("Failed to persist attribute")
		}

		s.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeAttribute,
			Data: map[string]interface{}{
				"name":  attr.Name,
				"value": attr.Value,
				"unit":  attr.Unit,
			},
		})
	}
}

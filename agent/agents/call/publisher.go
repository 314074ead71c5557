package call

import (
	"context"

	"github.com/rs/zerolog/log"
	contractx "github.com/superbryn/voice-agent/agent/contract"
)

// FanoutPublisher delivers each event to every sink. A sink failure is
// logged and does not stop delivery to the others.
type FanoutPublisher struct {
	sinks []contractx.Publisher
}

func NewFanoutPublisher(sinks ...contractx.Publisher) *FanoutPublisher {
	kept := make([]contractx.Publisher, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}
	return &FanoutPublisher{sinks: kept}
}

func (p *FanoutPublisher) Publish(ctx context.Context, topic string, event contractx.WireEvent) error {
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, topic, event); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("publisher sink failed")
		}
	}
	return nil
}

// Package ingest normalizes per-network inbound events into helpdesk
// reconciliation calls. One subscriber per bus topic; every handler
// catches its own failures so one bad event never starves the others.
package ingest

import (
	"context"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/bus"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/channel/vk"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/chatwoot"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/domain"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/logging"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/reconcile"
	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/routing"
)

// ProfileFetcher looks up a VK user profile for contact enrichment.
// *vk.Sender satisfies it.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, userID string) (vk.Profile, error)
}

// FailureJournal records inbound events the pipeline could not ingest.
// *store.Journal satisfies it.
type FailureJournal interface {
	RecordFailure(ctx context.Context, channel, topic, reason string, payload map[string]any) (string, error)
}

// Pipeline wires bus topics to the reconciliation engine and the
// outbound router.
type Pipeline struct {
	svc      *reconcile.Service
	router   *routing.Router
	inboxes  map[string]int
	profiles ProfileFetcher
	journal  FailureJournal
	log      *logging.Logger
}

// New creates a pipeline. inboxes maps channel tag -> helpdesk inbox id
// for the configured channels; profiles and journal may be nil.
func New(svc *reconcile.Service, router *routing.Router, inboxes map[string]int, profiles ProfileFetcher, journal FailureJournal, log *logging.Logger) *Pipeline {
	return &Pipeline{
		svc:      svc,
		router:   router,
		inboxes:  inboxes,
		profiles: profiles,
		journal:  journal,
		log:      log.Sub("ingest"),
	}
}

// Register subscribes all pipeline handlers on the bus.
func (p *Pipeline) Register(b *bus.Bus) {
	b.Subscribe(domain.TopicWasenderIncoming, "ingest-wasender", func(ctx context.Context, evt bus.Event) {
		if err := p.ingestWasender(ctx, evt.Payload); err != nil {
			p.fail(ctx, domain.ChannelWhatsApp, evt.Topic, evt.Payload, err)
		}
	})
	b.Subscribe(domain.TopicTelegramIncoming, "ingest-telegram", func(ctx context.Context, evt bus.Event) {
		if err := p.ingestTelegram(ctx, evt.Payload, "from_id", chatwoot.MessageIncoming); err != nil {
			p.fail(ctx, domain.ChannelTelegram, evt.Topic, evt.Payload, err)
		}
	})
	b.Subscribe(domain.TopicTelegramOutgoing, "ingest-telegram-outgoing", func(ctx context.Context, evt bus.Event) {
		if err := p.ingestTelegram(ctx, evt.Payload, "to_id", chatwoot.MessageOutgoing); err != nil {
			p.fail(ctx, domain.ChannelTelegram, evt.Topic, evt.Payload, err)
		}
	})
	b.Subscribe(domain.TopicVKIncoming, "ingest-vk", func(ctx context.Context, evt bus.Event) {
		if err := p.ingestVK(ctx, evt.Payload); err != nil {
			p.fail(ctx, domain.ChannelVK, evt.Topic, evt.Payload, err)
		}
	})
	b.Subscribe(domain.TopicVKConfirmation, "vk-confirmation", func(_ context.Context, evt bus.Event) {
		p.log.Info().Interface("group_id", evt.Payload["group_id"]).Msg("vk confirmation acknowledged")
	})
	b.Subscribe(domain.TopicChatwootOutgoing, "route-outgoing", func(ctx context.Context, evt bus.Event) {
		p.router.HandleOutgoing(ctx, evt.Payload)
	})
}

// fail logs an ingestion failure and records it in the journal.
func (p *Pipeline) fail(ctx context.Context, channel, topic string, payload map[string]any, err error) {
	p.log.Error().Err(err).Str("channel", channel).Str("topic", topic).Msg("ingestion failed")
	if p.journal == nil {
		return
	}
	if _, jerr := p.journal.RecordFailure(ctx, channel, topic, err.Error(), payload); jerr != nil {
		p.log.Warn().Err(jerr).Msg("journal write failed")
	}
}

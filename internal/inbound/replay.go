package inbound

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/comtesta/internal/store"
)

// ReplaySource delivers the persisted payload once at session start.
type ReplaySource struct {
	Store store.Store
}

func (s *ReplaySource) Run(ctx context.Context, h Handler) error {
	if s.Store == nil {
		return nil
	}
	e, err := s.Store.Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := h.OnPayload(ctx, Payload{Text: e.Payload, Source: SourceSaved, ReceivedAt: e.Timestamp}); err != nil {
		log.Warn().Err(err).Msg("saved payload not applied")
	}
	return nil
}

package store

import (
	"context"
	"sync"

	"ripplechat/internal/models"

	"github.com/rs/zerolog/log"
)

// Subscribe delivers the newest limit messages of conversationID to onUpdate,
// first immediately and then again after every append. On a load failure it
// calls onError, then onUpdate with an empty window, and stops. The
// subscription also stops when ctx ends.
//
// Callbacks run on one goroutine owned by the subscription. The returned
// cancel is idempotent and returns only once no callback can fire any more;
// it must not be called from inside a callback.
func (s *MessageStore) Subscribe(ctx context.Context, conversationID string, limit int, onUpdate func([]models.Message), onError func(error)) (cancel func()) {
	// register before the first load so no append can slip between them
	sub := s.hub.Subscribe(conversationID)
	ctx, stop := context.WithCancel(ctx)
	done := make(chan struct{})

	deliver := func() bool {
		msgs, err := s.Recent(ctx, conversationID, limit)
		if ctx.Err() != nil {
			return false
		}
		if err != nil {
			log.Warn().Err(err).Str("conversation_id", conversationID).Msg("feed load failed")
			if onError != nil {
				onError(err)
			}
			onUpdate([]models.Message{})
			return false
		}
		onUpdate(msgs)
		return true
	}

	go func() {
		defer close(done)
		defer s.hub.Unsubscribe(sub)
		if !deliver() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.C():
				if !deliver() {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			<-done
		})
	}
}

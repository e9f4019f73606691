// Package broadcast delivers bulk announcements to all active users.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/focuslabs/focusbot/internal/store"
)

// Sender delivers one message to one user with the current menu
// attached.
type Sender interface {
	Send(ctx context.Context, user *store.User, text string) error
}

// Broadcaster drains broadcasts in sending state, delivering each to
// every active user. Per-user failures are logged and skipped; a
// broadcast ends up sent as long as the user list could be read.
type Broadcaster struct {
	store    *store.Store
	sender   Sender
	workers  int
	interval time.Duration
	logger   zerolog.Logger
}

// New creates a Broadcaster. workers bounds concurrent per-user sends.
func New(st *store.Store, sender Sender, workers int, logger zerolog.Logger) *Broadcaster {
	if workers < 1 {
		workers = 1
	}
	return &Broadcaster{
		store:    st,
		sender:   sender,
		workers:  workers,
		interval: 15 * time.Second,
		logger:   logger.With().Str("component", "broadcast").Logger(),
	}
}

// Run polls for pending broadcasts until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		if err := b.DrainPending(ctx); err != nil {
			b.logger.Error().Err(err).Msg("broadcast drain failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// DrainPending delivers every broadcast currently in sending state,
// oldest first.
func (b *Broadcaster) DrainPending(ctx context.Context) error {
	pending, err := b.store.ListBroadcasts(store.BroadcastSending, 0)
	if err != nil {
		return err
	}
	for _, bc := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.deliver(ctx, bc)
	}
	return nil
}

func (b *Broadcaster) deliver(ctx context.Context, bc *store.Broadcast) {
	users, err := b.store.ListUsers(store.UserActive, 0)
	if err != nil {
		b.logger.Error().Err(err).Str("broadcast_id", bc.ID).Msg("listing recipients failed")
		if err := b.store.SetBroadcastStatus(bc.ID, store.BroadcastError); err != nil {
			b.logger.Error().Err(err).Str("broadcast_id", bc.ID).Msg("status update failed")
		}
		return
	}

	text := bc.Message
	if bc.Title != "" {
		text = bc.Title + "\n\n" + bc.Message
	}

	sem := make(chan struct{}, b.workers)
	var wg sync.WaitGroup
	for _, user := range users {
		wg.Add(1)
		sem <- struct{}{}
		go func(u *store.User) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := b.sender.Send(ctx, u, text); err != nil {
				b.logger.Warn().Err(err).Str("broadcast_id", bc.ID).Str("user_id", u.ID).Msg("broadcast delivery failed")
			}
		}(user)
	}
	wg.Wait()

	if err := b.store.SetBroadcastStatus(bc.ID, store.BroadcastSent); err != nil {
		b.logger.Error().Err(err).Str("broadcast_id", bc.ID).Msg("status update failed")
		return
	}
	b.logger.Info().Str("broadcast_id", bc.ID).Int("recipients", len(users)).Msg("broadcast delivered")
}

package cart

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cosmocart/cosmocart/pkg/models"
)

// Store is the remote persistence surface for a user's cart.
type Store interface {
	FetchCart(ctx context.Context, userID string) ([]models.CartLine, error)
	SaveCart(ctx context.Context, userID string, lines []models.CartLine) error
}

// DefaultSyncDelay is the trailing-edge debounce window for remote writes.
// A burst of mutations inside the window collapses to one write.
const DefaultSyncDelay = 500 * time.Millisecond

// Syncer keeps a cart in step with the remote store: one fetch at session
// start, then debounced pushes on every change. Pushes are suppressed until
// the initial fetch completes so an empty starting cart can never overwrite
// server state.
type Syncer struct {
	cart   *Cart
	store  Store
	userID string
	delay  time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	hydrated bool
	closed   bool
}

// NewSyncer wires a cart to a store. A delay of zero uses DefaultSyncDelay.
func NewSyncer(c *Cart, store Store, userID string, delay time.Duration) *Syncer {
	if delay <= 0 {
		delay = DefaultSyncDelay
	}
	s := &Syncer{cart: c, store: store, userID: userID, delay: delay}
	c.SetOnChange(s.scheduleSave)
	return s
}

// Hydrate loads the persisted cart into memory. It is called once per
// session; local pushes only start after it returns.
func (s *Syncer) Hydrate(ctx context.Context) error {
	lines, err := s.store.FetchCart(ctx, s.userID)
	if err != nil {
		// A failed fetch still unlocks syncing: the session proceeds with an
		// empty cart and local edits win.
		s.mu.Lock()
		s.hydrated = true
		s.mu.Unlock()
		return err
	}

	s.cart.replace(lines)
	s.mu.Lock()
	s.hydrated = true
	s.mu.Unlock()
	return nil
}

// scheduleSave resets the trailing-edge debounce timer.
func (s *Syncer) scheduleSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hydrated || s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.save)
}

// save pushes the current snapshot. Fire-and-forget: a failed write is
// logged, never surfaced to the conversation.
func (s *Syncer) save() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.store.SaveCart(ctx, s.userID, s.cart.Lines()); err != nil {
		log.Warn().Err(err).Str("user_id", s.userID).Msg("cart sync failed")
	}
}

// Flush writes the current snapshot immediately, cancelling any pending
// debounce. Used at session teardown.
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	hydrated := s.hydrated
	s.mu.Unlock()

	if !hydrated {
		return nil
	}
	return s.store.SaveCart(ctx, s.userID, s.cart.Lines())
}

// Close stops any pending write without flushing.
func (s *Syncer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

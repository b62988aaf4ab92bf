package basket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/edumall/edumall/pkg/session"
)

// Subscriber is the notification side of *session.Store.
type Subscriber interface {
	Subscribe(fn func(session.Snapshot)) (cancel func())
}

// ClearOnSignOut empties the wishlist whenever the session goes from signed
// in to signed out. The cart is left alone.
func (w *Wishlist) ClearOnSignOut(s Subscriber, log *slog.Logger) (cancel func()) {
	var (
		mu       sync.Mutex
		signedIn bool
	)
	return s.Subscribe(func(snap session.Snapshot) {
		mu.Lock()
		was := signedIn
		signedIn = snap.Authenticated
		mu.Unlock()

		if !was || snap.Authenticated {
			return
		}
		if err := w.Clear(context.Background()); err != nil {
			log.Warn("failed to clear wishlist after sign out", "error", err)
			return
		}
		log.Debug("wishlist cleared after sign out")
	})
}

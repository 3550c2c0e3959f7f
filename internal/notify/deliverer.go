package notify

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/keepstack/keepsync/pkg/logger"
)

// Deliverer posts a notification to a device channel.
type Deliverer interface {
	Deliver(ctx context.Context, notification Notification) error
}

// Fanout delivers to every configured channel. A channel failure is collected
// rather than short-circuiting, so one broken transport cannot silence the
// others.
type Fanout struct {
	channels []Deliverer
}

// NewFanout constructs a fanout over the given channels. Nil channels are
// skipped.
func NewFanout(channels ...Deliverer) *Fanout {
	fanout := &Fanout{}
	for _, channel := range channels {
		if channel != nil {
			fanout.channels = append(fanout.channels, channel)
		}
	}
	return fanout
}

// Deliver posts the notification to each channel and returns the combined
// errors, if any.
func (f *Fanout) Deliver(ctx context.Context, notification Notification) error {
	var combined error
	for _, channel := range f.channels {
		if err := channel.Deliver(ctx, notification); err != nil {
			combined = multierr.Append(combined, err)
		}
	}
	return combined
}

// PermissionGate wraps a deliverer and drops notifications while notification
// permission is not granted. Suppressed insights are still considered handled
// so the cursor advances past them; they will not be replayed when permission
// is granted later.
type PermissionGate struct {
	next Deliverer

	mu      sync.RWMutex
	granted bool
}

// NewPermissionGate wraps next with a permission check. granted sets the
// initial state.
func NewPermissionGate(next Deliverer, granted bool) *PermissionGate {
	return &PermissionGate{next: next, granted: granted}
}

// SetGranted updates the permission state.
func (g *PermissionGate) SetGranted(granted bool) {
	g.mu.Lock()
	g.granted = granted
	g.mu.Unlock()
}

// Granted reports the current permission state.
func (g *PermissionGate) Granted() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.granted
}

// Deliver forwards to the wrapped deliverer when permission is granted and is
// a silent no-op otherwise.
func (g *PermissionGate) Deliver(ctx context.Context, notification Notification) error {
	if !g.Granted() {
		logger.Debug("notification suppressed, permission not granted",
			zap.String("insight_id", notification.InsightID),
		)
		return nil
	}
	return g.next.Deliver(ctx, notification)
}

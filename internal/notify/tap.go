package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/keepstack/keepsync/pkg/logger"
	"github.com/keepstack/keepsync/pkg/metrics"
)

// DefaultActionID identifies a plain tap on the notification body, as opposed
// to an auxiliary action button.
const DefaultActionID = "default"

// TapEvent is a user interaction with a delivered notification.
type TapEvent struct {
	InsightID string            `json:"insight_id" validate:"required"`
	ActionID  string            `json:"action_id"`
	Payload   map[string]string `json:"payload,omitempty"`
}

// CaptureID returns the capture the tapped insight points at, if any.
func (e TapEvent) CaptureID() string {
	return e.Payload["capture_id"]
}

// Navigator takes the user to the insight screen inside the app.
type Navigator interface {
	// Ready reports whether navigation can be performed right now.
	Ready() bool
	// Navigate opens the target insight. Called at most once per tap.
	Navigate(event TapEvent) error
}

// TapRouter turns notification taps into navigation. Only the default tap
// action carrying a capture id navigates; auxiliary actions and taps without a
// destination are consumed without effect. When the
// navigator is not ready the event parks in a single pending slot, newest tap
// winning, and is dispatched exactly once when readiness is signalled.
type TapRouter struct {
	navigator Navigator
	log       *zap.Logger

	mu      sync.Mutex
	pending *TapEvent
}

// NewTapRouter constructs a router over the given navigator.
func NewTapRouter(navigator Navigator) *TapRouter {
	return &TapRouter{
		navigator: navigator,
		log:       logger.WithModule("tap"),
	}
}

// Observe handles a tap event. It returns the navigation error when the event
// was dispatched immediately; a deferred or consumed event returns nil.
func (r *TapRouter) Observe(event TapEvent) error {
	if event.ActionID != "" && event.ActionID != DefaultActionID {
		metrics.TapEvents.WithLabelValues("ignored").Inc()
		r.log.Debug("ignoring non-default tap action",
			zap.String("insight_id", event.InsightID),
			zap.String("action_id", event.ActionID),
		)
		return nil
	}
	if event.CaptureID() == "" {
		// Without a capture id there is no destination to open; the event is
		// consumed rather than parked.
		metrics.TapEvents.WithLabelValues("ignored").Inc()
		r.log.Debug("ignoring tap without capture id",
			zap.String("insight_id", event.InsightID),
		)
		return nil
	}

	r.mu.Lock()
	if !r.navigator.Ready() {
		r.pending = &event
		r.mu.Unlock()
		metrics.TapEvents.WithLabelValues("deferred").Inc()
		r.log.Info("navigator not ready, tap deferred",
			zap.String("insight_id", event.InsightID),
		)
		return nil
	}
	r.mu.Unlock()

	return r.dispatch(event)
}

// OnNavigatorReady flushes the pending tap, if one exists. Safe to call
// repeatedly; the slot is cleared before dispatch so the event cannot fire
// twice.
func (r *TapRouter) OnNavigatorReady() {
	r.mu.Lock()
	event := r.pending
	r.pending = nil
	r.mu.Unlock()

	if event == nil {
		return
	}
	if err := r.dispatch(*event); err != nil {
		r.log.Error("deferred tap navigation failed",
			zap.String("insight_id", event.InsightID),
			zap.Error(err),
		)
	}
}

func (r *TapRouter) dispatch(event TapEvent) error {
	if err := r.navigator.Navigate(event); err != nil {
		metrics.TapEvents.WithLabelValues("failed").Inc()
		return err
	}
	metrics.TapEvents.WithLabelValues("navigated").Inc()
	r.log.Info("tap navigated",
		zap.String("insight_id", event.InsightID),
		zap.String("capture_id", event.CaptureID()),
	)
	return nil
}

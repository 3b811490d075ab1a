// Package notify keeps the single transient status message shown to the user
// after an export or share.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultDelay is how long a message stays visible.
const DefaultDelay = 3 * time.Second

// Messages emitted by the export flow.
const (
	Saved        = "Image saved! ✅"
	SaveFailed   = "Failed to save image"
	Shared       = "Shared successfully! ✅"
	ShareFailed  = "Failed to share"
	UploadFailed = "Failed to load image"
)

// Notifier holds at most one message. Showing a new message replaces the
// current one and restarts the dismiss timer.
type Notifier struct {
	delay  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	current string
	seq     uint64
	timer   *time.Timer
}

// New creates a Notifier. delay <= 0 uses DefaultDelay; a nil logger uses
// slog.Default().
func New(delay time.Duration, logger *slog.Logger) *Notifier {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{delay: delay, logger: logger}
}

// Show replaces the current message with msg.
func (n *Notifier) Show(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
	}
	n.seq++
	seq := n.seq
	n.current = msg
	n.timer = time.AfterFunc(n.delay, func() { n.expire(seq) })
	n.logger.Info("notification", "message", msg)
}

// Current returns the visible message, or "" when nothing is shown.
func (n *Notifier) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Dismiss clears the message immediately.
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.seq++
	n.current = ""
}

// expire clears the message if it is still the one scheduled as seq. A timer
// that already fired when Stop was called must not clear a newer message.
func (n *Notifier) expire(seq uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if seq != n.seq {
		return
	}
	n.current = ""
	n.timer = nil
}

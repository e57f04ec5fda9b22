// Package notifications holds the transient status banner shown after console actions.
package notifications

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultDuration is how long a notification stays visible.
const DefaultDuration = 3000 * time.Millisecond

// Severity selects the banner color.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityDanger  Severity = "danger"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Notification is one visible banner message.
type Notification struct {
	Sequence  uint64    `json:"sequence"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	ShownAt   time.Time `json:"shown_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AlertClass returns the CSS class of the banner.
func (notification Notification) AlertClass() string {
	return fmt.Sprintf("alert alert-%s alert-dismissible fade show", notification.Severity)
}

// Channel shows at most one notification at a time. A newer message replaces the current one
// and restarts the dismissal timer; there is no queue.
type Channel struct {
	mutex    sync.Mutex
	clock    clockwork.Clock
	duration time.Duration
	logger   *zap.Logger
	current  *Notification
	timer    clockwork.Timer
	sequence uint64
}

// NewChannel creates a channel that dismisses notifications after duration on clk.
func NewChannel(clk clockwork.Clock, duration time.Duration, logger *zap.Logger) *Channel {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{clock: clk, duration: duration, logger: logger}
}

// Show replaces the visible notification.
func (channel *Channel) Show(message string, severity Severity) Notification {
	channel.mutex.Lock()
	defer channel.mutex.Unlock()

	if channel.timer != nil {
		channel.timer.Stop()
	}
	channel.sequence++
	shownAt := channel.clock.Now()
	notification := Notification{
		Sequence:  channel.sequence,
		Message:   message,
		Severity:  severity,
		ShownAt:   shownAt,
		ExpiresAt: shownAt.Add(channel.duration),
	}
	channel.current = &notification
	sequence := channel.sequence
	channel.timer = channel.clock.AfterFunc(channel.duration, func() {
		channel.expire(sequence)
	})
	channel.logger.Debug("show_notification", zap.String("severity", string(severity)), zap.Uint64("sequence", sequence))
	return notification
}

// Current returns the visible notification, if any. A notification past its expiry is hidden
// even if the dismissal timer has not run yet.
func (channel *Channel) Current() (Notification, bool) {
	channel.mutex.Lock()
	defer channel.mutex.Unlock()
	if channel.current == nil {
		return Notification{}, false
	}
	if !channel.clock.Now().Before(channel.current.ExpiresAt) {
		channel.current = nil
		return Notification{}, false
	}
	return *channel.current, true
}

// Dismiss hides the visible notification immediately.
func (channel *Channel) Dismiss() {
	channel.mutex.Lock()
	defer channel.mutex.Unlock()
	if channel.timer != nil {
		channel.timer.Stop()
		channel.timer = nil
	}
	channel.current = nil
}

// Duration returns the visibility period of each notification.
func (channel *Channel) Duration() time.Duration {
	return channel.duration
}

func (channel *Channel) expire(sequence uint64) {
	channel.mutex.Lock()
	defer channel.mutex.Unlock()
	// A replaced notification's timer may still fire after Stop lost the race.
	if channel.current == nil || channel.current.Sequence != sequence {
		return
	}
	channel.current = nil
	channel.timer = nil
}

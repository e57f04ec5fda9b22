package notifications_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/dispatchconsole/internal/notifications"
)

var testChannelStart = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func TestChannelDismissesAfterDefaultDuration(testingT *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(testChannelStart)
	channel := notifications.NewChannel(fakeClock, 0, zap.NewNop())
	require.Equal(testingT, notifications.DefaultDuration, channel.Duration())

	shown := channel.Show("System saved", notifications.SeveritySuccess)
	require.Equal(testingT, testChannelStart.Add(3*time.Second), shown.ExpiresAt)

	fakeClock.Advance(2999 * time.Millisecond)
	current, visible := channel.Current()
	require.True(testingT, visible)
	require.Equal(testingT, "System saved", current.Message)

	fakeClock.Advance(time.Millisecond)
	_, visible = channel.Current()
	require.False(testingT, visible)
}

func TestChannelNewestMessageWinsAndRestartsTimer(testingT *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(testChannelStart)
	channel := notifications.NewChannel(fakeClock, 3*time.Second, zap.NewNop())

	channel.Show("first", notifications.SeverityInfo)
	fakeClock.Advance(2 * time.Second)
	channel.Show("second", notifications.SeverityDanger)

	fakeClock.Advance(2 * time.Second)
	current, visible := channel.Current()
	require.True(testingT, visible)
	require.Equal(testingT, "second", current.Message)
	require.Equal(testingT, notifications.SeverityDanger, current.Severity)

	fakeClock.Advance(time.Second)
	_, visible = channel.Current()
	require.False(testingT, visible)
}

func TestChannelDismiss(testingT *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(testChannelStart)
	channel := notifications.NewChannel(fakeClock, time.Second, nil)
	channel.Show("hello", notifications.SeverityWarning)
	channel.Dismiss()
	_, visible := channel.Current()
	require.False(testingT, visible)

	fakeClock.Advance(time.Second)
	shown := channel.Show("again", notifications.SeverityInfo)
	require.Equal(testingT, testChannelStart.Add(2*time.Second), shown.ExpiresAt)
	current, visible := channel.Current()
	require.True(testingT, visible)
	require.Equal(testingT, "again", current.Message)
}

func TestChannelConcurrentShowKeepsSingleMessage(testingT *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(testChannelStart)
	channel := notifications.NewChannel(fakeClock, time.Second, nil)

	var waitGroup sync.WaitGroup
	for index := 0; index < 20; index++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			channel.Show("update", notifications.SeverityInfo)
		}()
	}
	waitGroup.Wait()

	current, visible := channel.Current()
	require.True(testingT, visible)
	require.Equal(testingT, uint64(20), current.Sequence)

	fakeClock.Advance(time.Second)
	_, visible = channel.Current()
	require.False(testingT, visible)
}

func TestNotificationAlertClass(testingT *testing.T) {
	notification := notifications.Notification{Severity: notifications.SeverityWarning}
	require.Equal(testingT, "alert alert-warning alert-dismissible fade show", notification.AlertClass())
}

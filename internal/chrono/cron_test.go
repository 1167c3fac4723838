package chrono

import (
	"ceksiak/internal/telemetry"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCronLoggerFormatParams(t *testing.T) {
	l := cronLogger{tel: &telemetry.Recorder{}}
	params := l.formatParams([]any{"now", 1, "entry", "a", "dangling"})
	require.Equal(t, []any{"now: 1", "entry: a"}, params)
}

func TestCronLoggerError(t *testing.T) {
	rec := &telemetry.Recorder{}
	l := cronLogger{tel: rec}
	l.Error(errors.New("boom"), "panic", "job", 1)
	require.True(t, rec.Has("broken", "cron"))
}

func TestStandardCronRejectsBadSpec(t *testing.T) {
	c := NewStandardCron(&telemetry.Recorder{})
	defer c.Stop()

	require.Error(t, c.Cron("not a schedule", func() {}))
	require.NoError(t, c.Cron("@every 30m", func() {}))
}

package notifier

import (
	"ceksiak/internal/telemetry"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testToken   = "bot-token"
	testChannel = "1234567890"
)

type fakeDiscord struct {
	server *httptest.Server

	channelType     int
	channelFailures int32
	channelAttempts atomic.Int32
	failures        int32
	failureStatus   int

	posts    atomic.Int32
	attempts atomic.Int32
	message  discordMessage
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}

func newFakeDiscord(t testing.TB) *fakeDiscord {
	f := &fakeDiscord{failureStatus: http.StatusTooManyRequests}

	authorized := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bot "+testToken {
			writeJSON(w, http.StatusUnauthorized, discordError{Code: 0, Message: "401: Unauthorized"})
			return false
		}
		return true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/@me", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, discordUser{Id: "1", Username: "ceksiak"})
	})
	mux.HandleFunc("GET /channels/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		if f.channelAttempts.Add(1) <= f.channelFailures {
			writeJSON(w, http.StatusServiceUnavailable, discordError{Message: "upstream unavailable"})
			return
		}
		if r.PathValue("id") != testChannel {
			writeJSON(w, http.StatusNotFound, discordError{Code: 10003, Message: "Unknown Channel"})
			return
		}
		writeJSON(w, http.StatusOK, discordChannel{Id: testChannel, Type: f.channelType})
	})
	mux.HandleFunc("POST /channels/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		attempt := f.attempts.Add(1)
		if attempt <= f.failures {
			writeJSON(w, f.failureStatus, discordError{Message: "try again later"})
			return
		}
		err := json.NewDecoder(r.Body).Decode(&f.message)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, discordError{Code: 50109, Message: err.Error()})
			return
		}
		f.posts.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"id": "1"})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func newTestDiscord(f *fakeDiscord, token string, rec *telemetry.Recorder) *Discord {
	d := NewDiscord(DiscordOptions{
		Token:     token,
		ChannelId: testChannel,
		BaseUrl:   f.server.URL,
		Timeout:   time.Second * 5,
	}, rec)
	d.Http.SetRetryWaitTime(time.Millisecond)
	d.Http.SetRetryMaxWaitTime(time.Millisecond * 5)
	return d
}

func TestDiscordVerify(t *testing.T) {
	f := newFakeDiscord(t)

	err := newTestDiscord(f, testToken, &telemetry.Recorder{}).Verify(context.Background())
	require.NoError(t, err)

	rec := &telemetry.Recorder{}
	err = newTestDiscord(f, "wrong", rec).Verify(context.Background())
	require.ErrorContains(t, err, "Unauthorized")
	require.True(t, rec.Has("broken", report_discord_verify))
}

func TestDiscordNotify(t *testing.T) {
	f := newFakeDiscord(t)
	d := newTestDiscord(f, testToken, &telemetry.Recorder{})

	err := d.Notify(context.Background(), testCourses)
	require.NoError(t, err)
	require.Equal(t, int32(1), f.posts.Load())
	require.Len(t, f.message.Embeds, 1)
	require.Equal(t, Title, f.message.Embeds[0].Title)
	require.Equal(t, Format(testCourses), f.message.Embeds[0].Description)
}

func TestDiscordChannelTypes(t *testing.T) {
	for channelType, name := range messageChannelTypes {
		t.Run(name, func(t *testing.T) {
			f := newFakeDiscord(t)
			f.channelType = channelType
			err := newTestDiscord(f, testToken, &telemetry.Recorder{}).Notify(context.Background(), testCourses)
			require.NoError(t, err)
			require.Equal(t, int32(1), f.posts.Load())
		})
	}

	// voice and category channels cannot receive embeds
	for _, channelType := range []int{2, 4, 13, 15} {
		f := newFakeDiscord(t)
		f.channelType = channelType
		rec := &telemetry.Recorder{}
		err := newTestDiscord(f, testToken, rec).Notify(context.Background(), testCourses)
		require.ErrorIs(t, err, ErrUnsupportedChannel)
		require.Equal(t, int32(0), f.attempts.Load())
		require.True(t, rec.Has("warning", report_discord_notify))
	}
}

func TestDiscordRetries(t *testing.T) {
	t.Run("rate limited then delivered", func(t *testing.T) {
		f := newFakeDiscord(t)
		f.failures = 2
		err := newTestDiscord(f, testToken, &telemetry.Recorder{}).Notify(context.Background(), testCourses)
		require.NoError(t, err)
		require.Equal(t, int32(3), f.attempts.Load())
		require.Equal(t, int32(1), f.posts.Load())
	})

	t.Run("rate limits exhaust retries", func(t *testing.T) {
		f := newFakeDiscord(t)
		f.failures = 100
		rec := &telemetry.Recorder{}
		err := newTestDiscord(f, testToken, rec).Notify(context.Background(), testCourses)
		require.Error(t, err)
		require.Equal(t, int32(4), f.attempts.Load())
		require.Equal(t, int32(0), f.posts.Load())
		require.True(t, rec.Has("broken", report_discord_notify))
	})

	t.Run("message post is not resent after a server error", func(t *testing.T) {
		f := newFakeDiscord(t)
		f.failures = 100
		f.failureStatus = http.StatusBadGateway
		rec := &telemetry.Recorder{}
		err := newTestDiscord(f, testToken, rec).Notify(context.Background(), testCourses)
		require.Error(t, err)
		require.Equal(t, int32(1), f.attempts.Load())
		require.True(t, rec.Has("broken", report_discord_notify))
	})

	t.Run("channel lookup is retried after a server error", func(t *testing.T) {
		f := newFakeDiscord(t)
		f.channelFailures = 2
		err := newTestDiscord(f, testToken, &telemetry.Recorder{}).Notify(context.Background(), testCourses)
		require.NoError(t, err)
		require.Equal(t, int32(3), f.channelAttempts.Load())
		require.Equal(t, int32(1), f.posts.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		f := newFakeDiscord(t)
		f.failures = 100
		f.failureStatus = http.StatusForbidden
		err := newTestDiscord(f, testToken, &telemetry.Recorder{}).Notify(context.Background(), testCourses)
		require.ErrorContains(t, err, "try again later")
		require.Equal(t, int32(1), f.attempts.Load())
	})
}

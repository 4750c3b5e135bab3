package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"hyperion/internal/app/ports"
	"hyperion/pkg/logger"
)

func newTestTwitch(t *testing.T, h http.HandlerFunc) *Twitch {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return NewTwitch(logger.New(logger.Options{Level: "error", Stdout: io.Discard}), srv.Client(), Options{
		HelixURL:    srv.URL + "/helix",
		HistoryURL:  srv.URL + "/recent",
		ValidateURL: srv.URL + "/validate",
		OAuth:       "oauth:tok",
		ClientID:    "cid",
		Limit:       rate.Inf,
	})
}

func TestCreateEventSubSubscription(t *testing.T) {
	tw := newTestTwitch(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/helix/eventsub/subscriptions", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "cid", r.Header.Get("Client-Id"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ports.EventSubRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "channel.moderate", req.Type)
		assert.Equal(t, "2", req.Version)
		assert.Equal(t, map[string]string{"broadcaster_user_id": "1", "moderator_user_id": "2"}, req.Condition)
		assert.Equal(t, ports.EventSubTransport{Method: "websocket", SessionID: "sess"}, req.Transport)

		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"data":[{"id":"sub-1","status":"enabled","type":"channel.moderate","version":"2","cost":0}],"total":1}`)
	})

	sub, err := tw.CreateEventSubSubscription(context.Background(), ports.EventSubRequest{
		Type:      "channel.moderate",
		Version:   "2",
		Condition: map[string]string{"broadcaster_user_id": "1", "moderator_user_id": "2"},
		Transport: ports.EventSubTransport{SessionID: "sess"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub.ID)
	assert.Equal(t, "enabled", sub.Status)
}

func TestCreateEventSubSubscriptionEmptyResponse(t *testing.T) {
	tw := newTestTwitch(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"data":[]}`)
	})

	_, err := tw.CreateEventSubSubscription(context.Background(), ports.EventSubRequest{Type: "stream.online", Version: "1"})
	assert.Error(t, err)
}

func TestDeleteEventSubSubscription(t *testing.T) {
	tw := newTestTwitch(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/helix/eventsub/subscriptions", r.URL.Path)
		assert.Equal(t, "sub-1", r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, tw.DeleteEventSubSubscription(context.Background(), "sub-1"))
	assert.Error(t, tw.DeleteEventSubSubscription(context.Background(), ""))
}

func TestRateLimitRetryReplaysBody(t *testing.T) {
	var calls atomic.Int32
	tw := newTestTwitch(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"type":"stream.online"`)

		if calls.Add(1) == 1 {
			w.Header().Set("Ratelimit-Reset", strconv.FormatInt(time.Now().Add(-time.Second).Unix(), 10))
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"data":[{"id":"sub-2"}]}`)
	})

	sub, err := tw.CreateEventSubSubscription(context.Background(), ports.EventSubRequest{Type: "stream.online", Version: "1"})
	require.NoError(t, err)
	assert.Equal(t, "sub-2", sub.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRateLimitHonorsContext(t *testing.T) {
	tw := newTestTwitch(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tw.DeleteEventSubSubscription(ctx, "sub-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{"bad request", http.StatusBadRequest, `{"error":"Bad Request","status":400,"message":"invalid condition"}`, ErrBadRequest, "invalid condition"},
		{"unauthorized", http.StatusUnauthorized, `{"error":"Unauthorized","status":401,"message":"Invalid OAuth token"}`, ErrUnauthorized, "Invalid OAuth token"},
		{"forbidden", http.StatusForbidden, `{"message":"missing scope"}`, ErrUnauthorized, "missing scope"},
		{"not found", http.StatusNotFound, `{"message":"no subscription"}`, ErrNotFound, "no subscription"},
		{"conflict", http.StatusConflict, `{"message":"subscription already exists"}`, ErrConflict, "already exists"},
		{"server error", http.StatusInternalServerError, `oops`, nil, "returned 500: oops"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := newTestTwitch(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			err := tw.DeleteEventSubSubscription(context.Background(), "x")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateToken(t *testing.T) {
	tw := newTestTwitch(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/validate", r.URL.Path)
		if r.Header.Get("Authorization") != "OAuth tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"status":401,"message":"invalid access token"}`)
			return
		}
		assert.Empty(t, r.Header.Get("Client-Id"))
		_, _ = io.WriteString(w, `{"client_id":"cid","login":"bot","scopes":["chat:read"],"user_id":"42","expires_in":5000}`)
	})

	info, err := tw.ValidateToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &ports.TokenInfo{ClientID: "cid", Login: "bot", UserID: "42", Scopes: []string{"chat:read"}, ExpiresIn: 5000}, info)

	tw.opts.OAuth = "other"
	_, err = tw.ValidateToken(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)

	tw.opts.OAuth = ""
	_, err = tw.ValidateToken(context.Background())
	assert.Error(t, err)
}

func TestGetUserByLogin(t *testing.T) {
	var calls atomic.Int32
	tw := newTestTwitch(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/helix/users", r.URL.Path)

		switch r.URL.Query().Get("login") {
		case "forsen":
			_, _ = io.WriteString(w, `{"data":[{"id":"22484632","login":"forsen","display_name":"forsen"}]}`)
		default:
			_, _ = io.WriteString(w, `{"data":[]}`)
		}
	})
	ctx := context.Background()

	for _, login := range []string{"forsen", "#Forsen"} {
		u, err := tw.GetUserByLogin(ctx, login)
		require.NoError(t, err)
		assert.Equal(t, "22484632", u.ID)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, err := tw.GetUserByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tw.GetUserByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetRecentMessages(t *testing.T) {
	var calls atomic.Int32
	tw := newTestTwitch(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/recent/forsen":
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			_, _ = io.WriteString(w, `{"messages":["@historical=1 :a!a@a PRIVMSG #forsen :hi","PING"],"error":null,"error_code":null}`)
		case "/recent/banned":
			_, _ = io.WriteString(w, `{"messages":[],"error":"The channel has been suspended.","error_code":"channel_banned"}`)
		case "/recent/partial":
			_, _ = io.WriteString(w, `{"messages":["PING"],"error":"partial","error_code":"x"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	lines, err := tw.GetRecentMessages(ctx, "#Forsen", 2)
	require.NoError(t, err)
	assert.Len(t, lines, 2)

	_, err = tw.GetRecentMessages(ctx, "banned", 2)
	assert.ErrorContains(t, err, "suspended")

	lines, err = tw.GetRecentMessages(ctx, "partial", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"PING"}, lines)

	before := calls.Load()
	lines, err = tw.GetRecentMessages(ctx, "forsen", 0)
	require.NoError(t, err)
	assert.Nil(t, lines)
	assert.Equal(t, before, calls.Load())
}

func TestCalcWaitDuration(t *testing.T) {
	now := time.Unix(1000, 0)

	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"empty", "", 0},
		{"garbage", "soon", 0},
		{"past", "999", 0},
		{"future", "1003", 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calcWaitDuration(tt.header, now))
		})
	}
}

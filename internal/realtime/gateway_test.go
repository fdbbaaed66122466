package realtime

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/query-triage/internal/events"
	apperrors "github.com/spec-kit/query-triage/pkg/util/errorutil"
)

type staticVerifier map[string]string

func (v staticVerifier) VerifyRecipient(_ context.Context, token string) (string, error) {
	id, ok := v[token]
	if !ok {
		return "", errors.New("bad signature")
	}
	return id, nil
}

func newGateway() (*Gateway, *Router) {
	r := NewRouter(RouterOptions{})
	return NewGateway(staticVerifier{"good": "alice", "other": "bob"}, r, nil), r
}

func TestGateway_Authenticate(t *testing.T) {
	g, r := newGateway()
	defer r.Close()

	id, err := g.Authenticate(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "alice", id)

	for _, token := range []string{"", "  ", "forged"} {
		_, err := g.Authenticate(context.Background(), token)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeAuth), token)
	}
}

func TestGateway_RejectedCredentialNeverRegisters(t *testing.T) {
	g, r := newGateway()
	defer r.Close()

	conn := newFakeConn()
	err := g.Serve(context.Background(), "forged", conn)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAuth))
	assert.Equal(t, 0, r.Sessions(""))

	require.NoError(t, r.Publish(context.Background(), events.NewQuery(query("q1"))))
	assert.Empty(t, conn.events())
}

func TestGateway_DeregistersOnEveryExitPath(t *testing.T) {
	tests := []struct {
		name    string
		finish  func(conn *fakeConn, cancel context.CancelFunc)
		wantErr func(t *testing.T, err error)
	}{
		{
			name:   "clean close",
			finish: func(conn *fakeConn, _ context.CancelFunc) { conn.inbound <- io.EOF },
			wantErr: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name:   "read error",
			finish: func(conn *fakeConn, _ context.CancelFunc) { conn.inbound <- errors.New("reset by peer") },
			wantErr: func(t *testing.T, err error) {
				assert.EqualError(t, err, "reset by peer")
			},
		},
		{
			name:   "read deadline",
			finish: func(conn *fakeConn, _ context.CancelFunc) { conn.inbound <- ErrSessionTimeout },
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrSessionTimeout)
			},
		},
		{
			name:   "cancellation",
			finish: func(_ *fakeConn, cancel context.CancelFunc) { cancel() },
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, context.Canceled)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, r := newGateway()
			defer r.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			conn := newFakeConn()

			errc := make(chan error, 1)
			go func() { errc <- g.Serve(ctx, "good", conn) }()

			waitFor(t, func() bool { return r.Sessions("alice") == 1 })
			require.NoError(t, r.Publish(ctx, events.QueryAssigned(query("q1"), "alice")))
			waitFor(t, func() bool { return len(conn.events()) == 1 })

			tt.finish(conn, cancel)
			select {
			case err := <-errc:
				tt.wantErr(t, err)
			case <-time.After(time.Second):
				t.Fatal("serve did not return")
			}
			assert.Equal(t, 0, r.Sessions(""))
		})
	}
}

func TestGateway_RelaysTypingToOtherSessions(t *testing.T) {
	g, r := newGateway()
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	typist, watcher := newFakeConn(), newFakeConn()
	go func() { _ = g.Serve(ctx, "good", typist) }()
	go func() { _ = g.Serve(ctx, "other", watcher) }()
	waitFor(t, func() bool { return r.Sessions("") == 2 })

	typist.frames <- Inbound{Type: "typing"}
	typist.frames <- Inbound{Type: "hello", QueryID: "q1"}
	typist.frames <- Inbound{Type: InboundTyping, QueryID: "q1"}

	waitFor(t, func() bool { return len(watcher.events()) == 1 })
	got := watcher.events()[0]
	assert.Equal(t, events.EventUserTyping, got.Type)
	assert.Equal(t, "alice", got.ActorID)
	assert.Equal(t, "q1", got.Query.ID)

	require.NoError(t, r.Publish(ctx, events.QueryUpdated(query("q1"))))
	waitFor(t, func() bool { return len(typist.events()) == 1 && len(watcher.events()) == 2 })
	assert.Equal(t, events.EventQueryUpdated, typist.events()[0].Type)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage(events.QueryEscalated(query("q1")))
	assert.Equal(t, events.EventQueryEscalated, msg.Type)
	assert.Equal(t, "URGENT: Query escalated!", msg.Message)
	assert.Equal(t, "high", msg.Priority)
	assert.Equal(t, "q1", msg.Query.ID)

	msg = NewMessage(events.QueryAssigned(query("q1"), "alice"))
	assert.Equal(t, "alice", msg.RecipientID)
	assert.Empty(t, msg.Priority)

	msg = NewMessage(events.UserTyping("alice", "q7"))
	assert.Equal(t, events.EventUserTyping, msg.Type)
	assert.Equal(t, "alice", msg.UserID)
	assert.Equal(t, "q7", msg.QueryID)
	assert.Nil(t, msg.Query)
}

package realtime

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/query-triage/internal/events"
	apperrors "github.com/spec-kit/query-triage/pkg/util/errorutil"
)

// ErrSessionTimeout is returned by Receive when the client stayed silent past
// its read deadline.
var ErrSessionTimeout = errors.New("session timed out")

// TokenVerifier resolves a credential to the recipient it was issued to.
type TokenVerifier interface {
	VerifyRecipient(ctx context.Context, token string) (string, error)
}

// ClientConn is a Connection that also reads from the client. Receive blocks
// until the next inbound frame. It returns io.EOF on a clean close and
// ErrSessionTimeout when the read deadline passes.
type ClientConn interface {
	Connection
	Receive() (Inbound, error)
}

// Gateway admits authenticated sessions into the router.
type Gateway struct {
	verifier TokenVerifier
	router   *Router
	logger   *zap.Logger
}

// NewGateway wires a verifier to a router.
func NewGateway(verifier TokenVerifier, router *Router, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{verifier: verifier, router: router, logger: logger}
}

// Authenticate returns the recipient behind token or an unauthorized error.
func (g *Gateway) Authenticate(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.NewUnauthorized("missing credential")
	}
	recipientID, err := g.verifier.VerifyRecipient(ctx, token)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeAuth) {
			return "", err
		}
		g.logger.Debug("credential rejected", zap.Error(err))
		return "", apperrors.NewUnauthorized("invalid credential")
	}
	if recipientID == "" {
		return "", apperrors.NewUnauthorized("invalid credential")
	}
	return recipientID, nil
}

// Serve authenticates, registers conn and blocks reading from it until the
// client goes away or ctx is done. The connection is deregistered on every
// return path. A rejected credential is returned without registering.
func (g *Gateway) Serve(ctx context.Context, token string, conn ClientConn) error {
	recipientID, err := g.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if err := g.router.Register(recipientID, conn); err != nil {
		_ = conn.Close()
		return err
	}
	defer g.router.Deregister(conn)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	g.logger.Info("session connected", zap.String("recipient_id", recipientID))
	defer g.logger.Info("session disconnected", zap.String("recipient_id", recipientID))

	for {
		in, err := conn.Receive()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, ErrSessionTimeout) {
				g.logger.Info("session timed out", zap.String("recipient_id", recipientID))
			}
			return err
		}
		g.handle(recipientID, conn, in)
	}
}

// handle acts on one client frame. Unknown frame types are ignored.
func (g *Gateway) handle(recipientID string, conn ClientConn, in Inbound) {
	if in.Type != InboundTyping || in.QueryID == "" {
		return
	}
	g.router.Relay(conn, events.UserTyping(recipientID, in.QueryID))
}

package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirechat-realtime/internal/auth"
	"github.com/vovakirdan/wirechat-realtime/internal/config"
	"github.com/vovakirdan/wirechat-realtime/internal/core"
	"github.com/vovakirdan/wirechat-realtime/internal/metrics"
	"github.com/vovakirdan/wirechat-realtime/internal/proto"
)

const writeTimeout = 10 * time.Second

// errEventsClosed ends the write pump once the hub has released the client.
var errEventsClosed = errors.New("event stream closed")

// Hub is the part of the realtime core driven by the transport.
type Hub interface {
	Connect(c *core.Client) error
	Disconnect(c *core.Client)
	Handle(ctx context.Context, c *core.Client, cmd *core.Command)
}

// WSHandler authenticates upgrade requests and bridges connections to the hub.
type WSHandler struct {
	hub  Hub
	auth auth.Verifier
	cfg  config.Config
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub Hub, verifier auth.Verifier, cfg config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, auth: verifier, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	userID, err := h.auth.Authenticate(bearerToken(r))
	if err != nil {
		metrics.AuthFailures.Inc()
		h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("ws auth rejected")
		stdhttp.Error(w, "unauthorized", stdhttp.StatusUnauthorized)
		return
	}

	opts := &websocket.AcceptOptions{OriginPatterns: h.cfg.AllowedOrigins}
	if len(h.cfg.AllowedOrigins) == 0 {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(h.cfg.SendQueueSize)
	client.Authenticate(core.UserID(userID), "")
	if err := h.hub.Connect(client); err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("hub rejected connection")
		conn.Close(websocket.StatusTryAgainLater, "server unavailable")
		return
	}
	defer h.hub.Disconnect(client)

	logger := h.log.With().Str("user_id", userID).Str("client_id", client.ID).Logger()
	logger.Debug().Msg("ws connected")

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return h.readLoop(ctx, conn, client, &logger) })
	g.Go(func() error { return h.writeLoop(ctx, conn, client) })
	err = g.Wait()

	status := websocket.StatusNormalClosure
	reason := "closing"
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
	case errors.Is(err, errEventsClosed):
		status = websocket.StatusGoingAway
		reason = "server shutting down"
	case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
	default:
		status = websocket.StatusInternalError
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		reason = "connection error"
		logger.Warn().Err(err).Msg("ws connection closed with error")
	}

	conn.Close(status, reason)
	logger.Debug().Msg("ws disconnected")
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	limiter := newRateLimiter(h.cfg.EventsPerMinute)
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			metrics.RateLimitHits.Inc()
			if err := writeJSON(ctx, conn, protocolError(core.ErrCodeRateLimited, "too many events")); err != nil {
				return err
			}
			continue
		}

		cmd, reply, err := inboundToCommand(inbound)
		if err != nil {
			logger.Debug().Err(err).Str("type", inbound.Type).Msg("invalid inbound payload")
			reply = protocolError(proto.ErrCodeInvalidMessage, "invalid payload for "+inbound.Type)
		}
		if reply != nil {
			if err := writeJSON(ctx, conn, reply); err != nil {
				return err
			}
			continue
		}
		h.hub.Handle(ctx, client, cmd)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return errEventsClosed
			}
			if err := writeJSON(ctx, conn, outboundFromEvent(event)); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

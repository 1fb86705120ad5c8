package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/dafibh/kaskecil/kaskecil-backend/internal/websocket"
	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ActorAuthenticator turns a raw JWT into the actor it identifies
type ActorAuthenticator interface {
	ActorFromToken(ctx context.Context, token string) (domain.Actor, error)
}

// WebSocketHandler upgrades live-update connections
type WebSocketHandler struct {
	hub            *websocket.Hub
	auth           ActorAuthenticator
	allowedOrigins map[string]bool
	upgrader       ws.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. Browser connections
// must come from one of allowedOrigins.
func NewWebSocketHandler(hub *websocket.Hub, auth ActorAuthenticator, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:            hub,
		auth:           auth,
		allowedOrigins: make(map[string]bool, len(allowedOrigins)),
	}
	for _, origin := range allowedOrigins {
		h.allowedOrigins[origin] = true
	}
	h.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Non-browser clients send no Origin
	if origin == "" || h.allowedOrigins[origin] {
		return true
	}
	log.Warn().Str("origin", origin).Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// HandleWS handles GET /ws?token=&accounts=kas,bank&entities=transfer,expense.
// Both filters are optional; without them every event is delivered.
func (h *WebSocketHandler) HandleWS(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	actor, err := h.auth.ActorFromToken(c.Request().Context(), token)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket connection rejected: invalid token")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	sub, err := websocket.ParseSubscription(c.QueryParam("accounts"), c.QueryParam("entities"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Error().Err(err).Str("actor_id", actor.ID).Msg("WebSocket upgrade failed")
		return err
	}

	client := websocket.NewClient(conn, actor.ID, sub, h.hub)
	if err := h.hub.Register(client); err != nil {
		reason := "registration failed"
		if errors.Is(err, websocket.ErrTooManyConnections) {
			reason = "too many connections"
		}
		conn.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.ClosePolicyViolation, reason),
			time.Now().Add(time.Second))
		conn.Close()
		log.Warn().Err(err).Str("actor_id", actor.ID).Msg("WebSocket client refused")
		return nil
	}

	log.Info().
		Str("actor_id", actor.ID).
		Strs("accounts", sub.Accounts()).
		Str("client_id", client.ID()).
		Msg("WebSocket client connected")

	go client.Run()
	return nil
}

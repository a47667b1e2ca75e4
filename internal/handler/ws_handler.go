package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/medsurvey/internal/config"
	"github.com/stemsi/medsurvey/internal/middleware"
	"github.com/stemsi/medsurvey/internal/response"
	"github.com/stemsi/medsurvey/internal/service"
	ws "github.com/stemsi/medsurvey/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams form events of one instance and accepts field updates.
type WSHandler struct {
	rdb      *redis.Client
	forms    FormService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, forms FormService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:      rdb,
		forms:    forms,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// FormStream godoc
// WS /ws/v1/forms/stream?token=
// Sends a snapshot, then every submitting transition, notification and
// state replacement of the instance.
func (h *WSHandler) FormStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	formID := claims.FormID

	view, err := h.forms.Get(c.Request.Context(), formID)
	if err != nil {
		writeFormError(c, h.log, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	wsLog := h.log.With().Str("form_id", formID).Logger()
	wsLog.Info().Msg("Form stream connected")

	// Subscribe before the snapshot so no event falls in between.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := h.rdb.Subscribe(ctx, config.CacheKey.FormEventsChannel(formID))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		wsLog.Error().Err(err).Msg("Subscribe failed")
		_ = conn.WriteError("stream unavailable")
		return
	}

	if err := conn.WriteTyped(ws.SnapshotResponse{
		Event:      ws.EventSnapshot,
		Values:     view.Values,
		Submitting: view.Submitting,
	}); err != nil {
		return
	}

	go h.forward(ctx, cancel, conn, sub, wsLog)

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		case ws.ActionUpdate:
			h.handleUpdate(ctx, conn, formID, msg, h.forms.UpdateText, wsLog)
		case ws.ActionSelect:
			h.handleUpdate(ctx, conn, formID, msg, h.forms.SelectChoice, wsLog)
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// forward relays PubSub messages and keeps the connection alive with pings.
func (h *WSHandler) forward(ctx context.Context, cancel context.CancelFunc, conn *ws.Conn, sub *redis.PubSub, wsLog zerolog.Logger) {
	defer cancel()
	// Unblocks the read loop once the subscription is gone.
	defer conn.Close()

	ticker := time.NewTicker(ws.PingPeriod)
	defer ticker.Stop()
	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				return
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev ws.FormEventResponse
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				wsLog.Warn().Err(err).Msg("Malformed form event")
				continue
			}
			if err := conn.WriteTyped(ev); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) handleUpdate(ctx context.Context, conn *ws.Conn, formID string, msg ws.RequestPayload, apply func(ctx context.Context, formID, key, value string) (*service.FormView, error), wsLog zerolog.Logger) {
	if msg.Key == "" {
		_ = conn.WriteFieldError("", string(response.ErrValidation), "key is required")
		return
	}
	if utf8.RuneCountInString(msg.Value) > MaxFieldValueLength {
		_ = conn.WriteFieldError(msg.Key, string(response.ErrValidation), response.GetMessage(response.ErrValidation))
		return
	}
	if _, err := apply(ctx, formID, msg.Key, msg.Value); err != nil {
		status, code := formErrorCode(err)
		if status == http.StatusInternalServerError {
			wsLog.Error().Err(err).Str("key", msg.Key).Msg("Form update failed")
		}
		_ = conn.WriteFieldError(msg.Key, string(code), response.GetMessage(code))
		return
	}
	_ = conn.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, Key: msg.Key})
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sparkleclean/realtime/internal/auth"
	"github.com/sparkleclean/realtime/internal/config"
	"github.com/sparkleclean/realtime/internal/core"
	"github.com/sparkleclean/realtime/internal/proto"
	"github.com/sparkleclean/realtime/internal/store"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client. One
// handler serves the unified socket, the per-user notification socket and
// the deprecated per-room sockets.
type WSHandler struct {
	hub   *core.Hub
	auth  *auth.Service
	store store.Store
	cfg   *config.Config
	log   *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, auth: authService, store: st, cfg: cfg, log: logger}
}

// Unified serves GET /ws/chat: every room and the caller's notification
// stream multiplexed over one connection.
func (h *WSHandler) Unified(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	h.serve(w, r, claims, 0, false)
}

// Notifications serves GET /ws/notifications/{user_id}: notification events
// only, for the authenticated user.
func (h *WSHandler) Notifications(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	userID, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil || userID != claims.UserID {
		h.writeError(w, stdhttp.StatusForbidden, "forbidden")
		return
	}
	h.serve(w, r, claims, 0, true)
}

// LegacyRoom serves the deprecated GET /ws/chat/{room_id} socket.
func (h *WSHandler) LegacyRoom(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	roomID, err := strconv.ParseInt(r.PathValue("room_id"), 10, 64)
	if err != nil {
		h.writeError(w, stdhttp.StatusBadRequest, "invalid room id")
		return
	}
	h.log.Warn().Int64("room_id", roomID).Msg("deprecated per-room socket used; migrate to /ws/chat")
	h.serve(w, r, claims, roomID, false)
}

// LegacyJobRoom serves the deprecated GET /ws/job_chat/{job_id} socket.
func (h *WSHandler) LegacyJobRoom(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	jobID, err := strconv.ParseInt(r.PathValue("job_id"), 10, 64)
	if err != nil {
		h.writeError(w, stdhttp.StatusBadRequest, "invalid job id")
		return
	}
	room, err := h.store.GetRoomByJobID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, stdhttp.StatusNotFound, "no room for this job")
			return
		}
		h.log.Error().Err(err).Int64("job_id", jobID).Msg("room lookup failed")
		h.writeError(w, stdhttp.StatusInternalServerError, "internal server error")
		return
	}
	h.log.Warn().Int64("job_id", jobID).Msg("deprecated job chat socket used; migrate to /ws/chat")
	h.serve(w, r, claims, room.ID, false)
}

// authenticate accepts the token from the Authorization header or, for
// browser WebSocket clients that cannot set headers, the token query param.
func (h *WSHandler) authenticate(w stdhttp.ResponseWriter, r *stdhttp.Request) (*auth.Claims, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		if len(header) > 7 && header[:7] == "Bearer " {
			token = header[7:]
		}
	}
	if token == "" {
		h.writeError(w, stdhttp.StatusUnauthorized, "missing token")
		return nil, false
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws token rejected")
		h.writeError(w, stdhttp.StatusUnauthorized, "invalid token")
		return nil, false
	}
	return claims, true
}

func (h *WSHandler) writeError(w stdhttp.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

func (h *WSHandler) serve(w stdhttp.ResponseWriter, r *stdhttp.Request, claims *auth.Claims, autoRoom int64, notifyOnly bool) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	conn.SetReadLimit(h.cfg.MaxMessageBytes)

	client := core.NewClient(uuid.NewString(), claims.UserID, claims.Username)
	client.NotifyOnly = notifyOnly
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	if autoRoom != 0 {
		client.Commands <- &core.Command{Kind: core.CommandSubscribeRoom, RoomID: autoRoom}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limiter := newRateLimiter(h.cfg.MessagesPerMinute)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, limiter *rateLimiter) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if client.NotifyOnly {
			if err := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: core.ErrCodeBadRequest, Msg: "notification socket is receive-only"},
			}); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("failed to map inbound")
			return err
		}
		if protoErr == nil && cmd != nil && cmd.Kind == core.CommandSendMessage && !limiter.allow() {
			protoErr = &proto.Error{Code: "rate_limited", Msg: "message rate limit exceeded"}
			cmd = nil
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
			continue
		}
		if cmd != nil {
			select {
			case client.Commands <- cmd:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if client.NotifyOnly && event.Kind != core.EventNotification {
				continue
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

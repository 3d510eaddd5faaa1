package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sparkleclean/realtime/internal/bus"
	"github.com/sparkleclean/realtime/internal/metrics"
	"github.com/sparkleclean/realtime/internal/store"
)

// historyLimit caps the message history sent on subscribe.
const historyLimit = 50

// Storage is the slice of the store the hub needs. A nil Storage runs the
// hub in ephemeral mode: every room exists, nothing is persisted.
type Storage interface {
	GetRoomByID(ctx context.Context, id int64) (*store.Room, error)
	IsParticipant(ctx context.Context, roomID, userID int64) (bool, error)
	SaveMessage(ctx context.Context, msg *store.Message) error
	ListMessages(ctx context.Context, roomID int64, limit int, beforeID *int64) ([]*store.Message, error)
}

type clientCommand struct {
	client *Client
	cmd    *Command
}

type registration struct {
	client *Client
	stop   chan struct{}
}

// Hub multiplexes every room and notification stream over the connected
// clients. A single goroutine owns all room state; transports talk to it
// through client channels. Outbound messages are persisted, published to the
// chat topic, and fanned out on receipt from the bus, so delivery works the
// same with one gateway instance or many.
type Hub struct {
	store Storage
	bus   bus.Bus
	log   *zerolog.Logger

	register   chan registration
	unregister chan *Client
	commands   chan clientCommand

	clients     map[*Client]chan struct{} // client -> pump stop
	userClients map[int64]map[*Client]struct{}
	rooms       map[int64]*Room
}

// NewHub creates a hub over the given storage and bus. A nil bus falls back
// to an in-process bus, a nil logger to a no-op logger.
func NewHub(st Storage, b bus.Bus, logger *zerolog.Logger) *Hub {
	if b == nil {
		b = bus.NewMemory()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		store:       st,
		bus:         b,
		log:         logger,
		register:    make(chan registration),
		unregister:  make(chan *Client),
		commands:    make(chan clientCommand, 64),
		clients:     make(map[*Client]chan struct{}),
		userClients: make(map[int64]map[*Client]struct{}),
		rooms:       make(map[int64]*Room),
	}
}

// RegisterClient attaches a client and starts pumping its commands.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- registration{client: c, stop: make(chan struct{})}
}

// UnregisterClient detaches a client, dropping all its subscriptions.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// Run processes registrations, client commands and bus events until the
// context is canceled. It must be running before clients are registered.
func (h *Hub) Run(ctx context.Context) {
	sub, err := h.bus.Subscribe(ctx, bus.TopicChat, bus.TopicNotifications)
	if err != nil {
		h.log.Error().Err(err).Msg("hub bus subscribe failed")
		return
	}
	defer sub.Close()

	for {
		select {
		case reg := <-h.register:
			h.handleRegister(ctx, reg)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case cc := <-h.commands:
			h.handleCommand(ctx, cc.client, cc.cmd)
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			h.handleBusEvent(event)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleRegister(ctx context.Context, reg registration) {
	c := reg.client
	h.clients[c] = reg.stop
	if h.userClients[c.UserID] == nil {
		h.userClients[c.UserID] = make(map[*Client]struct{})
	}
	h.userClients[c.UserID][c] = struct{}{}
	metrics.ConnectionsActive.Inc()

	go h.pumpCommands(ctx, c, reg.stop)
}

// pumpCommands forwards one client's commands into the hub loop.
func (h *Hub) pumpCommands(ctx context.Context, c *Client, stop <-chan struct{}) {
	for {
		select {
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			select {
			case h.commands <- clientCommand{client: c, cmd: cmd}:
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleUnregister(c *Client) {
	stop, ok := h.clients[c]
	if !ok {
		return
	}
	close(stop)
	delete(h.clients, c)
	metrics.ConnectionsActive.Dec()

	if set := h.userClients[c.UserID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.userClients, c.UserID)
		}
	}

	for roomID := range c.Rooms {
		if room := h.rooms[roomID]; room != nil {
			room.RemoveClient(c)
			room.Broadcast(&Event{
				Kind:     EventUserLeft,
				RoomID:   roomID,
				UserID:   c.UserID,
				Username: c.Name,
			})
			if room.Empty() {
				delete(h.rooms, roomID)
			}
		}
	}

	close(c.Events)
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	if _, registered := h.clients[c]; !registered {
		return
	}

	switch cmd.Kind {
	case CommandSubscribeRoom:
		h.handleSubscribe(ctx, c, cmd.RoomID)
	case CommandUnsubscribeRoom:
		h.handleUnsubscribe(c, cmd.RoomID)
	case CommandSendMessage:
		h.handleSend(ctx, c, cmd)
	default:
		h.sendError(c, coreError(ErrCodeBadRequest, "unknown command"))
	}
}

func (h *Hub) handleSubscribe(ctx context.Context, c *Client, roomID int64) {
	if _, subscribed := c.Rooms[roomID]; subscribed {
		h.sendError(c, coreError(ErrCodeAlreadySubscribed, "already subscribed"))
		return
	}

	if h.store != nil {
		if _, err := h.store.GetRoomByID(ctx, roomID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				h.sendError(c, coreError(ErrCodeRoomNotFound, "room not found"))
			} else {
				h.log.Error().Err(err).Int64("room_id", roomID).Msg("room lookup failed")
				h.sendError(c, coreError(ErrCodeInternal, "internal error"))
			}
			return
		}
		member, err := h.store.IsParticipant(ctx, roomID, c.UserID)
		if err != nil {
			h.log.Error().Err(err).Int64("room_id", roomID).Msg("participant lookup failed")
			h.sendError(c, coreError(ErrCodeInternal, "internal error"))
			return
		}
		if !member {
			h.sendError(c, coreError(ErrCodeNotParticipant, "not a participant of this room"))
			return
		}
	}

	room := h.rooms[roomID]
	if room == nil {
		room = NewRoom(roomID)
		h.rooms[roomID] = room
	}
	room.AddClient(c)
	c.Rooms[roomID] = struct{}{}

	h.trySend(c, &Event{Kind: EventSubscribed, RoomID: roomID})
	room.Broadcast(&Event{
		Kind:     EventUserJoined,
		RoomID:   roomID,
		UserID:   c.UserID,
		Username: c.Name,
	})
	h.sendHistory(ctx, c, roomID)
}

func (h *Hub) sendHistory(ctx context.Context, c *Client, roomID int64) {
	event := &Event{Kind: EventHistory, RoomID: roomID}
	if h.store != nil {
		stored, err := h.store.ListMessages(ctx, roomID, historyLimit, nil)
		if err != nil {
			h.log.Error().Err(err).Int64("room_id", roomID).Msg("history load failed")
			h.sendError(c, coreError(ErrCodeInternal, "internal error"))
			return
		}
		event.Messages = make([]Message, 0, len(stored))
		for _, m := range stored {
			event.Messages = append(event.Messages, Message{
				ID:        m.ID,
				RoomID:    m.RoomID,
				SenderID:  m.SenderID,
				Body:      m.Body,
				Kind:      string(m.Kind),
				CreatedAt: m.CreatedAt,
			})
		}
	}
	h.trySend(c, event)
}

func (h *Hub) handleUnsubscribe(c *Client, roomID int64) {
	room := h.rooms[roomID]
	if room == nil {
		h.sendError(c, coreError(ErrCodeRoomNotFound, "room not found"))
		return
	}
	if !room.RemoveClient(c) {
		h.sendError(c, coreError(ErrCodeNotSubscribed, "not subscribed"))
		return
	}
	delete(c.Rooms, roomID)

	h.trySend(c, &Event{Kind: EventUnsubscribed, RoomID: roomID})
	room.Broadcast(&Event{
		Kind:     EventUserLeft,
		RoomID:   roomID,
		UserID:   c.UserID,
		Username: c.Name,
	})
	if room.Empty() {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) handleSend(ctx context.Context, c *Client, cmd *Command) {
	room := h.rooms[cmd.RoomID]
	if room == nil || !room.Contains(c) {
		h.sendError(c, coreError(ErrCodeNotSubscribed, "subscribe to the room first"))
		return
	}

	msg := cmd.Message
	msg.RoomID = cmd.RoomID
	msg.SenderID = c.UserID
	msg.Sender = c.Name
	if msg.Kind == "" {
		msg.Kind = string(store.MessageKindText)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if h.store != nil {
		record := &store.Message{
			RoomID:    msg.RoomID,
			SenderID:  msg.SenderID,
			Body:      msg.Body,
			Kind:      store.MessageKind(msg.Kind),
			CreatedAt: msg.CreatedAt,
		}
		if err := h.store.SaveMessage(ctx, record); err != nil {
			h.log.Error().Err(err).Int64("room_id", msg.RoomID).Msg("message save failed")
			h.sendError(c, coreError(ErrCodeInternal, "internal error"))
			return
		}
		msg.ID = record.ID
		msg.CreatedAt = record.CreatedAt
	}

	event, err := bus.NewEvent(bus.TopicChat, bus.KindMessageSent, bus.MessageSent{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Sender:    msg.Sender,
		Body:      msg.Body,
		Kind:      msg.Kind,
		SentAt:    msg.CreatedAt.Unix(),
	})
	if err == nil {
		err = h.bus.Publish(ctx, event)
	}
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", msg.RoomID).Msg("message publish failed")
		h.sendError(c, coreError(ErrCodeInternal, "internal error"))
		return
	}
	metrics.MessagesPublished.Inc()
}

func (h *Hub) handleBusEvent(event bus.Event) {
	switch {
	case event.Topic == bus.TopicChat && event.Kind == bus.KindMessageSent:
		var payload bus.MessageSent
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			h.log.Warn().Err(err).Str("event_id", event.ID).Msg("drop malformed chat event")
			return
		}
		room := h.rooms[payload.RoomID]
		if room == nil {
			return
		}
		room.Broadcast(&Event{
			Kind:   EventNewMessage,
			RoomID: payload.RoomID,
			Message: Message{
				ID:        payload.MessageID,
				RoomID:    payload.RoomID,
				SenderID:  payload.SenderID,
				Sender:    payload.Sender,
				Body:      payload.Body,
				Kind:      payload.Kind,
				CreatedAt: time.Unix(payload.SentAt, 0).UTC(),
			},
		})
		metrics.MessagesDelivered.Add(float64(len(room.clients)))

	case event.Topic == bus.TopicNotifications && event.Kind == bus.KindNotificationPush:
		var payload bus.NotificationPush
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			h.log.Warn().Err(err).Str("event_id", event.ID).Msg("drop malformed notification event")
			return
		}
		for c := range h.userClients[payload.RecipientID] {
			h.trySend(c, &Event{
				Kind:   EventNotification,
				UserID: payload.RecipientID,
				Notification: &Notification{
					ID:          payload.NotificationID,
					RecipientID: payload.RecipientID,
					Template:    payload.Template,
					Body:        payload.Body,
					Priority:    payload.Priority,
				},
			})
			metrics.NotificationsPushed.Inc()
		}
	}
}

func (h *Hub) sendError(c *Client, cerr *CoreError) {
	h.trySend(c, &Event{Kind: EventError, Error: cerr})
}

func (h *Hub) trySend(c *Client, event *Event) {
	select {
	case c.Events <- event:
	default:
		// Drop if slow consumer.
	}
}

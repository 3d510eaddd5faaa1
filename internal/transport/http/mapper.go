package http

import (
	"encoding/json"

	"github.com/sparkleclean/realtime/internal/core"
	"github.com/sparkleclean/realtime/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	if inbound.V != 0 && inbound.V != proto.ProtocolVersion {
		return nil, &proto.Error{Code: "unsupported_version", Msg: "unsupported protocol version"}, nil
	}
	switch inbound.Type {
	case proto.InboundTypeSubscribe:
		var sub proto.SubscribeData
		if err := json.Unmarshal(inbound.Data, &sub); err != nil {
			return nil, nil, err
		}
		if sub.Room == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
		return &core.Command{
			Kind:   core.CommandSubscribeRoom,
			RoomID: sub.Room,
		}, nil, nil
	case proto.InboundTypeUnsubscribe:
		var unsub proto.SubscribeData
		if err := json.Unmarshal(inbound.Data, &unsub); err != nil {
			return nil, nil, err
		}
		if unsub.Room == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
		return &core.Command{
			Kind:   core.CommandUnsubscribeRoom,
			RoomID: unsub.Room,
		}, nil, nil
	case proto.InboundTypeSend:
		var msg proto.SendData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		if msg.Room == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
		}
		if msg.Text == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "text is required"}, nil
		}
		return &core.Command{
			Kind:   core.CommandSendMessage,
			RoomID: msg.Room,
			Message: core.Message{
				// ID is set by the hub after persistence.
				Body: msg.Text,
			},
		}, nil, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventNewMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameNewMessage,
			Data: proto.EventMessage{
				ID:     event.Message.ID,
				Room:   event.Message.RoomID,
				UserID: event.Message.SenderID,
				User:   event.Message.Sender,
				Text:   event.Message.Body,
				Kind:   event.Message.Kind,
				TS:     event.Message.CreatedAt.Unix(),
			},
		}
	case core.EventSubscribed:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameSubscribed,
			Data:  proto.EventSubscription{Room: event.RoomID},
		}
	case core.EventUnsubscribed:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUnsubscribed,
			Data:  proto.EventSubscription{Room: event.RoomID},
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUserJoined,
			Data: proto.EventUserPresence{
				Room:   event.RoomID,
				UserID: event.UserID,
				User:   event.Username,
			},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUserLeft,
			Data: proto.EventUserPresence{
				Room:   event.RoomID,
				UserID: event.UserID,
				User:   event.Username,
			},
		}
	case core.EventHistory:
		messages := make([]proto.EventMessage, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, proto.EventMessage{
				ID:     msg.ID,
				Room:   msg.RoomID,
				UserID: msg.SenderID,
				User:   msg.Sender,
				Text:   msg.Body,
				Kind:   msg.Kind,
				TS:     msg.CreatedAt.Unix(),
			})
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameHistory,
			Data: proto.EventHistory{
				Room:     event.RoomID,
				Messages: messages,
			},
		}
	case core.EventNotification:
		if event.Notification == nil {
			return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventNameNotification}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameNotification,
			Data: proto.EventNotification{
				ID:       event.Notification.ID,
				Template: event.Notification.Template,
				Body:     event.Notification.Body,
				Priority: event.Notification.Priority,
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

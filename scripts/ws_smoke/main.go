// Command ws_smoke connects to a running gateway, subscribes to a room,
// sends one message and prints the first frames it gets back. Useful for
// checking a deployment end to end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/sparkleclean/realtime/internal/proto"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws/chat", "WebSocket address")
	token := flag.String("token", "", "JWT token (required)")
	room := flag.Int64("room", 1, "room id to subscribe to")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" {
		log.Fatal("a -token is required; register via POST /api/register first")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr+"?token="+*token, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	mustSend := func(msgType string, data any) {
		payload, err := json.Marshal(data)
		if err != nil {
			log.Fatalf("marshal: %v", err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: payload}); err != nil {
			log.Fatalf("send: %v", err)
		}
	}

	mustSend(proto.InboundTypeSubscribe, proto.SubscribeData{Room: *room})
	mustSend(proto.InboundTypeSend, proto.SendData{Room: *room, Text: *text})

	var outbound struct {
		Type  string          `json:"type"`
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
		Error *proto.Error    `json:"error"`
	}

	for range 4 {
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			log.Fatalf("read: %v", err)
		}

		fmt.Printf("received: type=%s", outbound.Type)
		if outbound.Event != "" {
			fmt.Printf(" event=%s", outbound.Event)
		}
		fmt.Println()
		if outbound.Error != nil {
			fmt.Printf("error: %s (%s)\n", outbound.Error.Msg, outbound.Error.Code)
			return
		}

		if outbound.Event == proto.EventNameNewMessage {
			var evt proto.EventMessage
			if err := json.Unmarshal(outbound.Data, &evt); err == nil {
				fmt.Printf("message: room=%d user=%s text=%q ts=%d\n", evt.Room, evt.User, evt.Text, evt.TS)
			}
			return
		}
	}
}

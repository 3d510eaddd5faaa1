package core

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil, nil, nil)
	go hub.Run(ctx)

	sender := NewClient("sender", 0, "sender")
	hub.RegisterClient(sender)
	sender.Commands <- &Command{Kind: CommandSubscribeRoom, RoomID: 1}

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := NewClient(fmt.Sprintf("c%d", i), int64(i+1), "client")
		hub.RegisterClient(c)
		c.Commands <- &Command{Kind: CommandSubscribeRoom, RoomID: 1}
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid channel backpressure.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}

	// Let the joins settle, then flush the join/history noise on the target.
	time.Sleep(100 * time.Millisecond)
	drainEvents(target)
	drainEvents(sender)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sender.Commands <- &Command{
			Kind:   CommandSendMessage,
			RoomID: 1,
			Message: Message{
				Body: "payload",
			},
		}
		<-target.Events
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
func BenchmarkRoomBroadcast_500(b *testing.B) { benchmarkRoomBroadcast(b, 500) }

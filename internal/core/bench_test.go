package core

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func benchmarkChangeRelay(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil, nil)
	go hub.Run(ctx)

	sender := NewClient("sender")
	hub.RegisterClient(sender)
	sender.Commands <- &Command{Kind: CommandJoinProject, ProjectID: "bench", Username: "sender"}
	sender.Commands <- &Command{Kind: CommandJoinFile, FileID: "f1"}

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := NewClient(fmt.Sprintf("c%d", i))
		hub.RegisterClient(c)
		c.Commands <- &Command{Kind: CommandJoinProject, ProjectID: "bench", Username: fmt.Sprintf("user%d", i)}
		c.Commands <- &Command{Kind: CommandJoinFile, FileID: "f1"}
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
	go func() {
		for range sender.Events {
		}
	}()
	mustEventKind(target, EventFileSnapshot)

	// Let the join fan-out finish so the timed loop starts from a quiet
	// channel.
	for settled := false; !settled; {
		select {
		case <-target.Events:
		case <-time.After(200 * time.Millisecond):
			settled = true
		}
	}

	change := &Change{
		From: Position{Line: 1, Column: 0},
		To:   Position{Line: 1, Column: 7},
		Text: "payload",
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sender.Commands <- &Command{Kind: CommandSendChange, FileID: "f1", Change: change}
		mustEventKind(target, EventReceiveChange)
	}
}

// mustEventKind blocks until an event of the kind arrives, discarding others.
func mustEventKind(c *Client, kind EventKind) {
	for ev := range c.Events {
		if ev.Kind == kind {
			return
		}
	}
}

func BenchmarkChangeRelay_10(b *testing.B)  { benchmarkChangeRelay(b, 10) }
func BenchmarkChangeRelay_100(b *testing.B) { benchmarkChangeRelay(b, 100) }
func BenchmarkChangeRelay_500(b *testing.B) { benchmarkChangeRelay(b, 500) }

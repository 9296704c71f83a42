// Command ws_probe is an interactive terminal client for poking at a running
// coedit-server. It joins a project, reacts to presence events through the
// client reconciliation state, and lets you join files, move a cursor, and
// send edits from stdin.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/coedit/coedit-server/internal/client"
	"github.com/coedit/coedit-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_probe: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8000/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "username")
	project := flag.String("project", "demo", "project to join")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(msgType string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("marshal %s: %v", msgType, err)
			return
		}
		if writeErr := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: data}); writeErr != nil {
			cancel()
			log.Printf("send: %v", writeErr)
		}
	}

	send(proto.InboundTypeJoinProject, proto.JoinProjectData{ProjectID: *project, Username: *user})

	fmt.Printf("Connected to %s as %s in project %s\n", *addr, *user, *project)
	fmt.Println("Commands: join <file>, leave <file>, cursor <file> <line> <col>, change <file> <text>, users, tabs. Ctrl+C to exit.")

	state := client.NewState()

	go func() {
		defer cancel()
		readLoop(ctx, conn, state)
	}()

	writeLoop(ctx, send, state, *user)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, state *client.State) {
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if outbound.Type == proto.OutboundTypeError && outbound.Error != nil {
			fmt.Printf("server error: %s (%s)\n", outbound.Error.Msg, outbound.Error.Code)
			continue
		}

		raw, err := json.Marshal(outbound.Data)
		if err != nil {
			log.Printf("marshal outbound data: %v", err)
			continue
		}
		if err := state.Dispatch(outbound.Event, raw); err != nil {
			log.Printf("fold %s: %v", outbound.Event, err)
			continue
		}

		switch outbound.Event {
		case proto.EventLiveUserJoined, proto.EventLiveUserLeft:
			var evt proto.LiveUserData
			if err := json.Unmarshal(raw, &evt); err != nil {
				log.Printf("unmarshal %s: %v", outbound.Event, err)
				continue
			}
			verb := "joined"
			if outbound.Event == proto.EventLiveUserLeft {
				verb = "left"
			}
			fmt.Printf("[project] %s %s, live: %s\n", evt.Username, verb, strings.Join(state.LiveUsers(), ", "))
		case proto.EventUserJoined:
			var evt proto.UserJoinedData
			if err := json.Unmarshal(raw, &evt); err != nil {
				log.Printf("unmarshal %s: %v", outbound.Event, err)
				continue
			}
			fmt.Printf("[file %s] %s joined\n", evt.AUser.FileID, evt.AUser.Username)
		case proto.EventUserLeft:
			var evt proto.UserLeftData
			if err := json.Unmarshal(raw, &evt); err != nil {
				log.Printf("unmarshal %s: %v", outbound.Event, err)
				continue
			}
			fmt.Printf("[file %s] %s left\n", evt.FileID, evt.Username)
		case proto.EventReceiveChange:
			var evt proto.ChangeData
			if err := json.Unmarshal(raw, &evt); err != nil {
				log.Printf("unmarshal %s: %v", outbound.Event, err)
				continue
			}
			fmt.Printf("[file %s] change %d:%d-%d:%d %q\n", evt.FileID,
				evt.Change.From.Line, evt.Change.From.Column,
				evt.Change.To.Line, evt.Change.To.Column, evt.Change.Text)
		case proto.EventReceiveCursor:
			var evt proto.CursorData
			if err := json.Unmarshal(raw, &evt); err != nil {
				log.Printf("unmarshal %s: %v", outbound.Event, err)
				continue
			}
			fmt.Printf("[file %s] cursor %s at %d:%d\n", evt.FileID, evt.Username, evt.Position.Line, evt.Position.Column)
		default:
			fmt.Printf("event=%s data=%v\n", outbound.Event, outbound.Data)
		}
	}
}

func writeLoop(ctx context.Context, send func(string, any), state *client.State, user string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}

			switch fields[0] {
			case "join":
				if len(fields) != 2 {
					fmt.Println("usage: join <file>")
					continue
				}
				state.OpenTab(fields[1], fields[1])
				send(proto.InboundTypeJoinFile, proto.FileData{FileID: fields[1]})
			case "leave":
				if len(fields) != 2 {
					fmt.Println("usage: leave <file>")
					continue
				}
				state.CloseTab(fields[1])
				send(proto.InboundTypeLeaveFile, proto.FileData{FileID: fields[1]})
			case "cursor":
				if len(fields) != 4 {
					fmt.Println("usage: cursor <file> <line> <col>")
					continue
				}
				lineNo, err1 := strconv.Atoi(fields[2])
				colNo, err2 := strconv.Atoi(fields[3])
				if err1 != nil || err2 != nil {
					fmt.Println("usage: cursor <file> <line> <col>")
					continue
				}
				send(proto.InboundTypeSendCursor, proto.CursorData{
					FileID:   fields[1],
					Username: user,
					Position: proto.Position{Line: lineNo, Column: colNo},
				})
			case "change":
				if len(fields) < 3 {
					fmt.Println("usage: change <file> <text>")
					continue
				}
				send(proto.InboundTypeSendChange, proto.ChangeData{
					FileID: fields[1],
					Change: proto.Change{Text: strings.Join(fields[2:], " "), Origin: "+input"},
				})
			case "users":
				fmt.Printf("live: %s\n", strings.Join(state.LiveUsers(), ", "))
			case "tabs":
				for _, tab := range state.Tabs() {
					fmt.Printf("tab %s:\n", tab.FileID)
					for _, u := range tab.Users {
						fmt.Printf("  %s active=%v live=%v\n", u.Username, u.IsActiveInTab, u.IsLive)
					}
				}
			default:
				fmt.Println("unknown command")
			}
		}
	}
}

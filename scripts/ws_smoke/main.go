// Command ws_smoke does a single scripted pass against a running
// coedit-server: join a project, open a file, and print the snapshot that
// comes back. Exit status reflects whether the round trip worked.
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

	"github.com/coedit/coedit-server/internal/proto"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8000/ws", "WebSocket address")
	user := flag.String("user", "tester", "username to join with")
	project := flag.String("project", "demo", "project id")
	file := flag.String("file", "smoke-file", "file id to open")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	mustSend := func(msgType string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Fatalf("marshal %s: %v", msgType, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: data}); err != nil {
			log.Fatalf("send %s: %v", msgType, err)
		}
	}

	mustSend(proto.InboundTypeJoinProject, proto.JoinProjectData{ProjectID: *project, Username: *user})
	mustSend(proto.InboundTypeJoinFile, proto.FileData{FileID: *file})

	var outbound struct {
		Type  string          `json:"type"`
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
		Error *proto.Error    `json:"error,omitempty"`
	}

	for {
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			log.Fatalf("read: %v", err)
		}
		if outbound.Type == proto.OutboundTypeError {
			log.Fatalf("server error: %+v", outbound.Error)
		}
		if outbound.Event == proto.EventLoadLiveUsers {
			break
		}
		fmt.Printf("skipping event=%s\n", outbound.Event)
	}

	var snap proto.LoadLiveUsersData
	if err := json.Unmarshal(outbound.Data, &snap); err != nil {
		log.Fatalf("unmarshal snapshot: %v", err)
	}

	fmt.Printf("Snapshot for file=%s: %d presence entries, %d cursors\n", snap.FileID, len(snap.AllUsers), len(snap.Cursors))
	for _, u := range snap.AllUsers {
		fmt.Printf("  %s file=%s active=%v live=%v\n", u.Username, u.FileID, u.IsActiveInTab, u.IsLive)
	}
}

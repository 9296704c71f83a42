package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/coedit/coedit-server/internal/auth"
	"github.com/coedit/coedit-server/internal/config"
	"github.com/coedit/coedit-server/internal/core"
	"github.com/coedit/coedit-server/internal/proto"
	"github.com/coedit/coedit-server/internal/store"
	"github.com/coedit/coedit-server/internal/store/memory"
)

func createTestStore(t *testing.T) *memory.MemoryStore {
	t.Helper()

	st := memory.New()
	st.SeedProject(
		&store.Project{ID: "p1", Name: "demo"},
		&store.File{ID: "f1", ProjectID: "p1", Name: "main.go"},
		&store.File{ID: "f2", ProjectID: "p1", Name: "util.go"},
	)
	return st
}

func createTestAuthService(st store.UserStore) *auth.Service {
	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	return auth.NewService(st, jwtConfig)
}

func startTestServer(t *testing.T) (*httptest.Server, *memory.MemoryStore, *auth.Service, context.CancelFunc) {
	t.Helper()

	st := createTestStore(t)
	authService := createTestAuthService(st)
	logger := zerolog.Nop()

	hub := core.NewHub(st, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	cfg := config.Default()
	server := NewServer(hub, authService, st, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, st, authService, cancel
}

func sendMessage(ctx context.Context, t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", msgType, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: data}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// mustWSEvent reads frames until one carries the wanted event, discarding
// everything else.
func mustWSEvent(ctx context.Context, t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()

	for {
		var out rawOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if out.Type == proto.OutboundTypeEvent && out.Event == event {
			return out.Data
		}
	}
}

func mustWSError(ctx context.Context, t *testing.T, conn *websocket.Conn) *proto.Error {
	t.Helper()

	for {
		var out rawOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("waiting for error frame: %v", err)
		}
		if out.Type == proto.OutboundTypeError {
			if out.Error == nil {
				t.Fatal("error frame without error payload")
			}
			return out.Error
		}
	}
}

package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/coedit/coedit-server/internal/store"
)

const storeTimeout = 3 * time.Second

// Hub coordinates the collaborative editing core. It owns the presence
// registry and the project presence tracker, runs one command pump per
// client, and routes commands through a dispatch table. Database writes are
// best-effort cache updates for reload rendering; live correctness never
// waits on them.
type Hub struct {
	registry *Registry
	presence *Presence
	store    store.PresenceStore
	log      zerolog.Logger

	register   chan *Client
	unregister chan *Client
	handlers   map[CommandKind]func(*Client, *Command)
	pumps      map[*Client]chan struct{}
}

// NewHub creates a hub. Both the store and the logger may be nil; a nil store
// skips cache writes, which is how the core tests run.
func NewHub(st store.PresenceStore, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &Hub{
		registry:   NewRegistry(),
		presence:   NewPresence(),
		store:      st,
		log:        *logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		pumps:      make(map[*Client]chan struct{}),
	}
	h.handlers = map[CommandKind]func(*Client, *Command){
		CommandJoinProject:   h.handleJoinProject,
		CommandJoinFile:      h.handleJoinFile,
		CommandLeaveFile:     h.handleLeaveFile,
		CommandLoadLiveUsers: h.handleLoadLiveUsers,
		CommandSendChange:    h.handleSendChange,
		CommandSendCursor:    h.handleSendCursor,
		CommandRemoveCursor:  h.handleRemoveCursor,
	}
	return h
}

// Registry exposes the presence registry for snapshot reads.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Presence exposes the project presence tracker.
func (h *Hub) Presence() *Presence {
	return h.presence
}

// RegisterClient hands a new connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient tears down a connection. The caller must not send further
// commands for this client. All registry and presence state tied to the
// connection is unwound before this returns to the hub loop.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// Run processes client registration until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			done := make(chan struct{})
			h.pumps[c] = done
			go h.serve(c, done)
		case c := <-h.unregister:
			done, ok := h.pumps[c]
			if !ok {
				continue
			}
			delete(h.pumps, c)
			close(c.Commands)
			<-done // drain queued commands before unwinding state
			h.teardown(c)
		case <-ctx.Done():
			return
		}
	}
}

// serve pumps one client's commands in order. One pump per client keeps
// per-sender ordering; different clients dispatch concurrently and meet at
// the registry's lock.
func (h *Hub) serve(c *Client, done chan struct{}) {
	defer close(done)
	for cmd := range c.Commands {
		h.dispatch(c, cmd)
	}
}

func (h *Hub) dispatch(c *Client, cmd *Command) {
	handler, ok := h.handlers[cmd.Kind]
	if !ok {
		h.log.Warn().Int("kind", int(cmd.Kind)).Str("client_id", c.ID).Msg("unknown command kind")
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "unknown command")})
		return
	}
	handler(c, cmd)
}

func (h *Hub) handleJoinProject(c *Client, cmd *Command) {
	if cmd.ProjectID == "" || cmd.Username == "" {
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "project_id and username are required")})
		return
	}

	first, prev := h.presence.Connect(c, cmd.ProjectID, cmd.Username)
	if prev != nil {
		// The connection re-announced itself elsewhere. Its file sessions and
		// old live status unwind as if it had disconnected; c still carries
		// the old identity while the registry broadcasts the departures.
		h.registry.DisconnectAll(c)
		if prev.Last {
			left := &Event{Kind: EventLiveUserLeft, ProjectID: prev.ProjectID, Username: prev.Username}
			removed := &Event{Kind: EventRemoveActiveLiveUser, ProjectID: prev.ProjectID, Username: prev.Username}
			for _, other := range h.presence.ProjectClients(prev.ProjectID, c) {
				other.send(left)
				other.send(removed)
			}
			h.syncLive(prev.ProjectID, prev.Username, false)
			h.log.Debug().Str("project_id", prev.ProjectID).Str("username", prev.Username).Msg("live user left")
		}
	}

	c.ProjectID = cmd.ProjectID
	c.Username = cmd.Username

	if !first {
		return
	}

	event := &Event{
		Kind:      EventLiveUserJoined,
		ProjectID: cmd.ProjectID,
		Username:  cmd.Username,
	}
	for _, other := range h.presence.ProjectClients(cmd.ProjectID, c) {
		other.send(event)
	}

	h.syncLive(cmd.ProjectID, cmd.Username, true)
	h.log.Debug().Str("project_id", cmd.ProjectID).Str("username", cmd.Username).Msg("live user joined")
}

func (h *Hub) handleJoinFile(c *Client, cmd *Command) {
	if cmd.FileID == "" {
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "file_id is required")})
		return
	}
	if c.ProjectID == "" {
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeNotInProject, "join a project first")})
		return
	}

	entry := h.presence.Activate(c.ProjectID, cmd.FileID, c.Username, time.Now())
	_, cursors := h.registry.Join(cmd.FileID, c)

	// Snapshot-on-join: the late joiner starts from the current state instead
	// of an empty overlay.
	c.send(&Event{
		Kind:    EventFileSnapshot,
		FileID:  cmd.FileID,
		Entries: h.presence.Entries(c.ProjectID),
		Cursors: cursors,
	})

	h.registry.Broadcast(cmd.FileID, &Event{
		Kind:     EventUserJoined,
		FileID:   cmd.FileID,
		Username: c.Username,
		Entry:    &entry,
	}, c)

	h.syncEntry(entry)
}

func (h *Hub) handleLeaveFile(c *Client, cmd *Command) {
	if cmd.FileID == "" {
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "file_id is required")})
		return
	}

	h.registry.Leave(cmd.FileID, c)
	if entry, ok := h.presence.Deactivate(c.ProjectID, cmd.FileID, c.Username, time.Now()); ok {
		h.syncEntry(entry)
	}
}

func (h *Hub) handleLoadLiveUsers(c *Client, cmd *Command) {
	if cmd.FileID == "" {
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "file_id is required")})
		return
	}

	_, cursors := h.registry.Snapshot(cmd.FileID)
	c.send(&Event{
		Kind:    EventFileSnapshot,
		FileID:  cmd.FileID,
		Entries: h.presence.Entries(c.ProjectID),
		Cursors: cursors,
	})
}

func (h *Hub) handleSendChange(c *Client, cmd *Command) {
	if cmd.FileID == "" || cmd.Change == nil {
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "file_id and change are required")})
		return
	}
	h.registry.RelayChange(cmd.FileID, c, cmd.Change)
}

func (h *Hub) handleSendCursor(c *Client, cmd *Command) {
	username := cmd.Username
	if username == "" {
		username = c.Username
	}
	if cmd.FileID == "" || username == "" {
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "file_id and username are required")})
		return
	}
	h.registry.UpdateCursor(cmd.FileID, username, cmd.Position, c)
}

func (h *Hub) handleRemoveCursor(c *Client, cmd *Command) {
	username := cmd.Username
	if username == "" {
		username = c.Username
	}
	if cmd.FileID == "" || username == "" {
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "file_id and username are required")})
		return
	}
	h.registry.RemoveCursor(cmd.FileID, username, c)
}

// teardown unwinds everything a departing connection touched: its file
// sessions, its cursors, and, if this was the user's last connection, their
// live status in the project.
func (h *Hub) teardown(c *Client) {
	h.registry.DisconnectAll(c)

	projectID, username, last, ok := h.presence.Disconnect(c)
	if !ok || !last {
		return
	}

	left := &Event{Kind: EventLiveUserLeft, ProjectID: projectID, Username: username}
	removed := &Event{Kind: EventRemoveActiveLiveUser, ProjectID: projectID, Username: username}
	for _, other := range h.presence.ProjectClients(projectID, nil) {
		other.send(left)
		other.send(removed)
	}

	h.syncLive(projectID, username, false)
	h.log.Debug().Str("project_id", projectID).Str("username", username).Msg("live user left")
}

func (h *Hub) syncEntry(entry PresenceEntry) {
	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if entry.IsActiveInTab {
		if err := h.store.DeactivateTabs(ctx, entry.ProjectID, entry.Username); err != nil {
			h.log.Warn().Err(err).Str("username", entry.Username).Msg("failed to deactivate cached tabs")
		}
	}
	if err := h.store.UpsertPresence(ctx, &store.PresenceEntry{
		ProjectID:     entry.ProjectID,
		FileID:        entry.FileID,
		Username:      entry.Username,
		IsActiveInTab: entry.IsActiveInTab,
		IsLive:        entry.IsLive,
		Timestamp:     entry.Timestamp,
	}); err != nil {
		h.log.Warn().Err(err).Str("file_id", entry.FileID).Str("username", entry.Username).Msg("failed to cache presence entry")
	}
}

func (h *Hub) syncLive(projectID, username string, live bool) {
	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := h.store.SetLive(ctx, projectID, username, live); err != nil {
		h.log.Warn().Err(err).Str("project_id", projectID).Str("username", username).Msg("failed to cache live flag")
	}
}

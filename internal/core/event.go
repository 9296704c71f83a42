package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventLiveUserJoined notifies project participants about a newly live user.
	EventLiveUserJoined EventKind = iota
	// EventLiveUserLeft notifies project participants that a user's last
	// connection closed.
	EventLiveUserLeft
	// EventUserJoined notifies file participants about a new joiner, carrying
	// the joiner's presence entry.
	EventUserJoined
	// EventUserLeft notifies file participants that a user left the file.
	EventUserLeft
	// EventRemoveActiveLiveUser tells clients to drop a user from every tab.
	EventRemoveActiveLiveUser
	// EventFileSnapshot delivers the current presence entries and cursor set,
	// sent to a joining participant and on explicit snapshot requests.
	EventFileSnapshot
	// EventReceiveChange relays an edit from another participant.
	EventReceiveChange
	// EventReceiveCursor relays a cursor position from another participant.
	EventReceiveCursor
	// EventRemoveCursor removes one user's cursor in one file.
	EventRemoveCursor
	// EventRemoveUserCursor removes one user's cursor everywhere, emitted on
	// disconnect.
	EventRemoveUserCursor
	// EventError notifies clients about a domain error.
	EventError
)

// PresenceEntry tracks one (project, file, user) combination: whether the user
// currently has the file open as their active tab and whether they are
// connected at all. At most one entry per (project, user) is active at any
// instant.
type PresenceEntry struct {
	ProjectID     string
	FileID        string
	Username      string
	IsActiveInTab bool
	IsLive        bool
	Timestamp     time.Time
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind      EventKind
	ProjectID string
	FileID    string
	Username  string
	Position  Position
	Change    *Change
	Entry     *PresenceEntry      // for EventUserJoined
	Entries   []PresenceEntry     // for EventFileSnapshot
	Cursors   map[string]Position // for EventFileSnapshot
	Error     *CoreError
}

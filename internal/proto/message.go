package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoinProject   = "editor:join-project"
	InboundTypeJoinFile      = "code-editor:join-file"
	InboundTypeLeaveFile     = "code-editor:leave-file"
	InboundTypeLoadLiveUsers = "code-editor:load-live-users"
	InboundTypeSendChange    = "code-editor:send-change"
	InboundTypeSendCursor    = "code-editor:send-cursor"
	InboundTypeRemoveCursor  = "code-editor:remove-cursor"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventLiveUserJoined       = "editor:live-user-joined"
	EventLiveUserLeft         = "editor:live-user-left"
	EventUserJoined           = "code-editor:user-joined"
	EventUserLeft             = "code-editor:user-left"
	EventRemoveActiveLiveUser = "code-editor:remove-active-live-user"
	EventLoadLiveUsers        = "code-editor:load-live-users"
	EventReceiveChange        = "code-editor:receive-change"
	EventReceiveCursor        = "code-editor:receive-cursor"
	EventRemoveCursor         = "code-editor:remove-cursor"
	EventRemoveUserCursor     = "code-editor:remove-user-specific-cursor"
)

// Position is an editor coordinate, opaque to the server.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Change is one atomic edit relayed between participants of a file.
type Change struct {
	From   Position `json:"from"`
	To     Position `json:"to"`
	Text   string   `json:"text"`
	Origin string   `json:"origin,omitempty"`
}

// JoinProjectData announces the client as a live user of a project.
type JoinProjectData struct {
	ProjectID string `json:"project_id"`
	Username  string `json:"username"`
}

// FileData addresses a single file (join, leave, load-live-users).
type FileData struct {
	FileID string `json:"file_id"`
}

// ChangeData carries one edit from the client.
type ChangeData struct {
	FileID string `json:"file_id"`
	Change Change `json:"change"`
}

// CursorData carries one cursor position.
type CursorData struct {
	FileID   string   `json:"file_id"`
	Username string   `json:"username"`
	Position Position `json:"position"`
}

// RemoveCursorData removes one user's cursor from one file.
type RemoveCursorData struct {
	FileID   string `json:"file_id"`
	Username string `json:"username"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// PresenceUser is one presence entry as the frontend consumes it.
type PresenceUser struct {
	FileID        string    `json:"file_id"`
	ProjectID     string    `json:"project_id"`
	Username      string    `json:"username"`
	IsActiveInTab bool      `json:"is_active_in_tab"`
	IsLive        bool      `json:"is_live"`
	Timestamp     time.Time `json:"live_users_timestamp"`
}

// UserJoinedData notifies file participants about a new joiner.
type UserJoinedData struct {
	AUser PresenceUser `json:"aUser"`
}

// UserLeftData notifies file participants that a user left the file.
type UserLeftData struct {
	FileID   string `json:"file_id"`
	Username string `json:"username"`
}

// LiveUserData names a user in project-scoped notifications.
type LiveUserData struct {
	Username string `json:"username"`
}

// LoadLiveUsersData is the presence and cursor snapshot, delivered to a
// joining participant and on explicit load-live-users requests.
type LoadLiveUsersData struct {
	FileID   string              `json:"file_id,omitempty"`
	AllUsers []PresenceUser      `json:"allUsers"`
	Cursors  map[string]Position `json:"cursors,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

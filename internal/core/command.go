package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinProject announces the client as a live user of a project.
	CommandJoinProject CommandKind = iota
	// CommandJoinFile subscribes the client to a file session and makes the
	// file the client's active tab.
	CommandJoinFile
	// CommandLeaveFile unsubscribes the client from a file session.
	CommandLeaveFile
	// CommandLoadLiveUsers requests a presence and cursor snapshot.
	CommandLoadLiveUsers
	// CommandSendChange relays an edit to the other participants of a file.
	CommandSendChange
	// CommandSendCursor relays a cursor position to the other participants.
	CommandSendCursor
	// CommandRemoveCursor removes the client's cursor from a file.
	CommandRemoveCursor
)

// Command represents an action requested by a client.
type Command struct {
	Kind      CommandKind
	ProjectID string
	FileID    string
	Username  string
	Position  Position
	Change    *Change
}

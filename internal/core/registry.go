package core

import "sync"

// Registry owns every FileSession in the process. It is the single source of
// truth for who is connected to which file right now. All mutation goes
// through its methods; leave and cursor operations on unknown files are
// no-ops, never errors, because redundant leaves and late disconnects are
// routine.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*FileSession
	byClient map[*Client]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*FileSession),
		byClient: make(map[*Client]map[string]struct{}),
	}
}

// Join adds the client to the file's session, creating it if needed, and
// returns the pre-join snapshot (participant usernames and cursors) so the
// caller can hand the joiner its starting state. Joining twice is a no-op
// that still returns the snapshot.
func (r *Registry) Join(fileID string, c *Client) (participants []string, cursors map[string]Position) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[fileID]
	if !ok {
		session = newFileSession(fileID)
		r.sessions[fileID] = session
	}

	participants = session.usernames()
	cursors = session.snapshotCursors()

	session.add(c)
	files, ok := r.byClient[c]
	if !ok {
		files = make(map[string]struct{})
		r.byClient[c] = files
	}
	files[fileID] = struct{}{}

	return participants, cursors
}

// Leave removes the client from the file's session. When no other connection
// of the same username remains, the remaining participants are told the user
// left and their cursor is removed. An empty session is reclaimed.
func (r *Registry) Leave(fileID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(fileID, c, EventRemoveCursor)
}

// DisconnectAll removes the client from every session it belongs to and
// returns the affected file ids. Called exactly once per connection teardown;
// no registry entries for the client survive it.
func (r *Registry) DisconnectAll(c *Client) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	files := make([]string, 0, len(r.byClient[c]))
	for fileID := range r.byClient[c] {
		files = append(files, fileID)
		r.leaveLocked(fileID, c, EventRemoveUserCursor)
	}
	delete(r.byClient, c)
	return files
}

func (r *Registry) leaveLocked(fileID string, c *Client, cursorEvent EventKind) {
	if files, ok := r.byClient[c]; ok {
		delete(files, fileID)
	}

	session, ok := r.sessions[fileID]
	if !ok {
		return
	}
	if !session.remove(c) {
		return
	}

	// Another tab of the same user may still be in the file.
	if !session.hasUsername(c.Username) {
		session.dropCursor(c.Username)
		session.broadcast(&Event{
			Kind:     cursorEvent,
			FileID:   fileID,
			Username: c.Username,
		}, nil)
		session.broadcast(&Event{
			Kind:     EventUserLeft,
			FileID:   fileID,
			Username: c.Username,
		}, nil)
	}

	if session.empty() {
		delete(r.sessions, fileID)
	}
}

// Broadcast sends an event to all participants of a file except one.
// Unknown files are silently ignored.
func (r *Registry) Broadcast(fileID string, event *Event, except *Client) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if session, ok := r.sessions[fileID]; ok {
		session.broadcast(event, except)
	}
}

// RelayChange forwards a change verbatim to every participant of the file
// except the sender. A change addressed to a file with no session is dropped
// silently: the file was closed mid-flight.
func (r *Registry) RelayChange(fileID string, sender *Client, change *Change) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[fileID]
	if !ok {
		return
	}
	session.broadcast(&Event{
		Kind:   EventReceiveChange,
		FileID: fileID,
		Change: change,
	}, sender)
}

// UpdateCursor upserts the username's cursor and broadcasts it to every other
// participant. The sender never receives its own cursor back. Cursors only
// exist for participants: an update for a username with no connection in the
// session is dropped, otherwise the cursor would outlive every cleanup path
// and reappear in later snapshots.
func (r *Registry) UpdateCursor(fileID, username string, pos Position, sender *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[fileID]
	if !ok {
		return
	}
	if !session.hasUsername(username) {
		return
	}
	session.cursors[username] = pos
	session.broadcast(&Event{
		Kind:     EventReceiveCursor,
		FileID:   fileID,
		Username: username,
		Position: pos,
	}, sender)
}

// RemoveCursor deletes the username's cursor and tells the other participants.
func (r *Registry) RemoveCursor(fileID, username string, sender *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[fileID]
	if !ok {
		return
	}
	delete(session.cursors, username)
	session.broadcast(&Event{
		Kind:     EventRemoveCursor,
		FileID:   fileID,
		Username: username,
	}, sender)
}

// Snapshot returns the full current participant and cursor state for a file.
// Clients may pull it at any time; a dropped notification self-heals here.
func (r *Registry) Snapshot(fileID string) (participants []string, cursors map[string]Position) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[fileID]
	if !ok {
		return nil, map[string]Position{}
	}
	return session.usernames(), session.snapshotCursors()
}

// SessionCount reports how many file sessions are alive, for tests and stats.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// InSession reports whether the client participates in the file's session.
func (r *Registry) InSession(fileID string, c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[fileID]
	if !ok {
		return false
	}
	_, ok = session.participants[c]
	return ok
}

package core

import (
	"sync"
	"time"
)

type connInfo struct {
	client    *Client
	projectID string
	username  string
}

type entryKey struct {
	fileID   string
	username string
}

// Presence tracks which users are live in which project and which file each
// user has as their active tab. It is the state machine behind the
// live-user-joined/left notifications: a user becomes live with their first
// connection to a project and stops being live when the last one closes, so
// multi-tab users never appear to leave while another tab is open.
type Presence struct {
	mu      sync.Mutex
	conns   map[*Client]connInfo
	entries map[string]map[entryKey]*PresenceEntry // projectID -> entries
}

// NewPresence creates an empty presence tracker.
func NewPresence() *Presence {
	return &Presence{
		conns:   make(map[*Client]connInfo),
		entries: make(map[string]map[entryKey]*PresenceEntry),
	}
}

// ProjectSwitch names the project identity a connection abandoned by
// re-announcing itself elsewhere. Last reports whether it was the user's
// final connection there, the same signal Disconnect gives.
type ProjectSwitch struct {
	ProjectID string
	Username  string
	Last      bool
}

// Connect registers a connection of username in a project. It reports whether
// this made the user live, i.e. whether observers should be notified.
// Duplicate connects from the same user never report true twice in a row.
// A connection already known under a different project or username has the
// old identity unwound first, exactly as a disconnect would, and prev names
// what was left behind.
func (p *Presence) Connect(c *Client, projectID, username string) (first bool, prev *ProjectSwitch) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if info, ok := p.conns[c]; ok {
		if info.projectID == projectID && info.username == username {
			// Same connection re-announcing itself.
			return false, nil
		}
		delete(p.conns, c)
		prev = &ProjectSwitch{ProjectID: info.projectID, Username: info.username}
		if !p.hasUserLocked(info.projectID, info.username) {
			prev.Last = true
			p.dropEntriesLocked(info.projectID, info.username)
		}
	}

	first = !p.hasUserLocked(projectID, username)
	p.conns[c] = connInfo{client: c, projectID: projectID, username: username}
	return first, prev
}

// Disconnect removes a connection. It reports the project and username the
// connection belonged to and whether it was the user's last connection there.
func (p *Presence) Disconnect(c *Client) (projectID, username string, last bool, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, found := p.conns[c]
	if !found {
		return "", "", false, false
	}
	delete(p.conns, c)

	projectID, username = info.projectID, info.username
	last = !p.hasUserLocked(projectID, username)
	if last {
		// Liveness is bound to connections: the user's entries go with the
		// last one. The database cache keeps its rows for reload rendering.
		p.dropEntriesLocked(projectID, username)
	}
	return projectID, username, last, true
}

func (p *Presence) dropEntriesLocked(projectID, username string) {
	for key := range p.entries[projectID] {
		if key.username == username {
			delete(p.entries[projectID], key)
		}
	}
	if len(p.entries[projectID]) == 0 {
		delete(p.entries, projectID)
	}
}

// Activate makes fileID the user's active tab, deactivating whatever was
// active before (last writer wins; at most one active entry per user per
// project survives any call sequence). It returns the updated entry.
func (p *Presence) Activate(projectID, fileID, username string, now time.Time) PresenceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	project, ok := p.entries[projectID]
	if !ok {
		project = make(map[entryKey]*PresenceEntry)
		p.entries[projectID] = project
	}

	for key, entry := range project {
		if key.username == username && entry.IsActiveInTab {
			entry.IsActiveInTab = false
		}
	}

	key := entryKey{fileID: fileID, username: username}
	entry, ok := project[key]
	if !ok {
		entry = &PresenceEntry{
			ProjectID: projectID,
			FileID:    fileID,
			Username:  username,
		}
		project[key] = entry
	}
	entry.IsActiveInTab = true
	entry.IsLive = true
	entry.Timestamp = now

	return *entry
}

// Deactivate clears the active flag of the user's entry for a file, if any.
// The user stays live; they just no longer have the file focused.
func (p *Presence) Deactivate(projectID, fileID, username string, now time.Time) (PresenceEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[projectID][entryKey{fileID: fileID, username: username}]
	if !ok {
		return PresenceEntry{}, false
	}
	entry.IsActiveInTab = false
	entry.Timestamp = now
	return *entry, true
}

// Entries returns a copy of every presence entry in a project.
func (p *Presence) Entries(projectID string) []PresenceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	project := p.entries[projectID]
	entries := make([]PresenceEntry, 0, len(project))
	for _, entry := range project {
		entries = append(entries, *entry)
	}
	return entries
}

// LiveUsers returns the usernames with at least one open connection to the
// project.
func (p *Presence) LiveUsers(projectID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]struct{})
	users := make([]string, 0)
	for _, info := range p.conns {
		if info.projectID != projectID {
			continue
		}
		if _, ok := seen[info.username]; ok {
			continue
		}
		seen[info.username] = struct{}{}
		users = append(users, info.username)
	}
	return users
}

// ProjectClients returns every connection in a project except the given one,
// the audience for project-scoped notifications.
func (p *Presence) ProjectClients(projectID string, except *Client) []*Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	clients := make([]*Client, 0, len(p.conns))
	for c, info := range p.conns {
		if info.projectID != projectID || c == except {
			continue
		}
		clients = append(clients, c)
	}
	return clients
}

func (p *Presence) hasUserLocked(projectID, username string) bool {
	for _, info := range p.conns {
		if info.projectID == projectID && info.username == username {
			return true
		}
	}
	return false
}

// Package client folds the server's presence and editing events into local
// per-file view state: open tabs, the users on each tab, cursor overlays, and
// the project's live-user list. Folding is idempotent, so redelivered events
// under at-least-once transports leave the state unchanged.
package client

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/coedit/coedit-server/internal/proto"
)

// TabUser is one user's presence on one tab.
type TabUser struct {
	Username      string
	IsActiveInTab bool
	IsLive        bool
	Timestamp     time.Time
}

// Tab is one open file with the users viewing it.
type Tab struct {
	FileID   string
	FileName string
	Users    []TabUser
}

// State is the reconciliation target. Not safe for concurrent use: drive it
// from the connection's read loop.
type State struct {
	tabs    []*Tab
	cursors map[string]map[string]proto.Position // fileID -> username -> position
	live    map[string]struct{}
}

// NewState creates an empty state.
func NewState() *State {
	return &State{
		cursors: make(map[string]map[string]proto.Position),
		live:    make(map[string]struct{}),
	}
}

// OpenTab registers a file as an open tab. Opening an already-open tab is a
// no-op.
func (s *State) OpenTab(fileID, fileName string) {
	if s.findTab(fileID) != nil {
		return
	}
	s.tabs = append(s.tabs, &Tab{FileID: fileID, FileName: fileName})
}

// CloseTab drops a tab and its cursor overlay.
func (s *State) CloseTab(fileID string) {
	for i, tab := range s.tabs {
		if tab.FileID == fileID {
			s.tabs = append(s.tabs[:i], s.tabs[i+1:]...)
			break
		}
	}
	delete(s.cursors, fileID)
}

// Dispatch routes a raw outbound event into the matching fold.
func (s *State) Dispatch(event string, data json.RawMessage) error {
	switch event {
	case proto.EventLiveUserJoined:
		var d proto.LiveUserData
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.ApplyLiveUserJoined(d.Username)
	case proto.EventLiveUserLeft:
		var d proto.LiveUserData
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.ApplyLiveUserLeft(d.Username)
	case proto.EventUserJoined:
		var d proto.UserJoinedData
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.ApplyUserJoined(d.AUser)
	case proto.EventUserLeft:
		var d proto.UserLeftData
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.ApplyUserLeft(d.FileID, d.Username)
	case proto.EventRemoveActiveLiveUser:
		var d proto.LiveUserData
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.ApplyRemoveActiveLiveUser(d.Username)
	case proto.EventLoadLiveUsers:
		var d proto.LoadLiveUsersData
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.ApplyLoadLiveUsers(d)
	case proto.EventReceiveCursor:
		var d proto.CursorData
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.ApplyCursor(d)
	case proto.EventRemoveCursor:
		var d proto.RemoveCursorData
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.ApplyRemoveCursor(d.FileID, d.Username)
	case proto.EventRemoveUserCursor:
		var d proto.RemoveCursorData
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("decode %s: %w", event, err)
		}
		s.ApplyRemoveUserCursor(d.Username)
	}
	// Changes are applied to the text buffer, not to presence state.
	return nil
}

// ApplyUserJoined folds a user-joined event: the user's previous active tab
// loses its flag everywhere, then the user is upserted on the named tab.
// Applying the same event twice is a no-op after the first.
func (s *State) ApplyUserJoined(user proto.PresenceUser) {
	for _, tab := range s.tabs {
		for i := range tab.Users {
			if tab.Users[i].Username == user.Username {
				tab.Users[i].IsActiveInTab = false
			}
		}
	}
	s.upsertTabUser(user)
}

// ApplyUserLeft removes the user from the named tab. Unknown users and tabs
// are no-ops.
func (s *State) ApplyUserLeft(fileID, username string) {
	tab := s.findTab(fileID)
	if tab == nil {
		return
	}
	for i, u := range tab.Users {
		if u.Username == username {
			tab.Users = append(tab.Users[:i], tab.Users[i+1:]...)
			return
		}
	}
}

// ApplyRemoveActiveLiveUser drops the user from every tab.
func (s *State) ApplyRemoveActiveLiveUser(username string) {
	for _, tab := range s.tabs {
		for i, u := range tab.Users {
			if u.Username == username {
				tab.Users = append(tab.Users[:i], tab.Users[i+1:]...)
				break
			}
		}
	}
}

// ApplyLoadLiveUsers folds a snapshot: every entry is upserted on its tab and
// the snapshot's cursor overlay replaces the file's.
func (s *State) ApplyLoadLiveUsers(d proto.LoadLiveUsersData) {
	for _, user := range d.AllUsers {
		s.upsertTabUser(user)
	}
	if d.FileID != "" && d.Cursors != nil {
		overlay := make(map[string]proto.Position, len(d.Cursors))
		for username, pos := range d.Cursors {
			overlay[username] = pos
		}
		s.cursors[d.FileID] = overlay
	}
}

// ApplyCursor upserts a cursor. A cursor for an unknown user inserts that
// user.
func (s *State) ApplyCursor(d proto.CursorData) {
	overlay, ok := s.cursors[d.FileID]
	if !ok {
		overlay = make(map[string]proto.Position)
		s.cursors[d.FileID] = overlay
	}
	overlay[d.Username] = d.Position
}

// ApplyRemoveCursor drops one user's cursor from one file.
func (s *State) ApplyRemoveCursor(fileID, username string) {
	delete(s.cursors[fileID], username)
}

// ApplyRemoveUserCursor drops one user's cursor from every file.
func (s *State) ApplyRemoveUserCursor(username string) {
	for _, overlay := range s.cursors {
		delete(overlay, username)
	}
}

// ApplyLiveUserJoined adds a user to the live list if absent.
func (s *State) ApplyLiveUserJoined(username string) {
	s.live[username] = struct{}{}
}

// ApplyLiveUserLeft removes a user from the live list if present.
func (s *State) ApplyLiveUserLeft(username string) {
	delete(s.live, username)
}

// Tabs returns a copy of the current tab state.
func (s *State) Tabs() []Tab {
	tabs := make([]Tab, 0, len(s.tabs))
	for _, tab := range s.tabs {
		cp := Tab{FileID: tab.FileID, FileName: tab.FileName}
		cp.Users = append(cp.Users, tab.Users...)
		tabs = append(tabs, cp)
	}
	return tabs
}

// Cursors returns a copy of the cursor overlay for a file.
func (s *State) Cursors(fileID string) map[string]proto.Position {
	overlay := make(map[string]proto.Position, len(s.cursors[fileID]))
	for username, pos := range s.cursors[fileID] {
		overlay[username] = pos
	}
	return overlay
}

// LiveUsers returns the sorted live-user list.
func (s *State) LiveUsers() []string {
	users := make([]string, 0, len(s.live))
	for username := range s.live {
		users = append(users, username)
	}
	sort.Strings(users)
	return users
}

func (s *State) findTab(fileID string) *Tab {
	for _, tab := range s.tabs {
		if tab.FileID == fileID {
			return tab
		}
	}
	return nil
}

func (s *State) upsertTabUser(user proto.PresenceUser) {
	tab := s.findTab(user.FileID)
	if tab == nil {
		return
	}
	for i := range tab.Users {
		if tab.Users[i].Username == user.Username {
			tab.Users[i].IsActiveInTab = user.IsActiveInTab
			tab.Users[i].IsLive = user.IsLive
			tab.Users[i].Timestamp = user.Timestamp
			return
		}
	}
	tab.Users = append(tab.Users, TabUser{
		Username:      user.Username,
		IsActiveInTab: user.IsActiveInTab,
		IsLive:        user.IsLive,
		Timestamp:     user.Timestamp,
	})
}

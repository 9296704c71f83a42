package core

// FileSession is the live collaboration state for one file: the set of
// connected participants and the last-known cursor per username. Sessions are
// created lazily on first join and reclaimed when the participant set empties.
// All methods assume the owning registry's lock is held.
type FileSession struct {
	FileID       string
	participants map[*Client]struct{}
	cursors      map[string]Position
}

func newFileSession(fileID string) *FileSession {
	return &FileSession{
		FileID:       fileID,
		participants: make(map[*Client]struct{}),
		cursors:      make(map[string]Position),
	}
}

func (s *FileSession) add(c *Client) {
	s.participants[c] = struct{}{}
}

func (s *FileSession) remove(c *Client) bool {
	if _, ok := s.participants[c]; !ok {
		return false
	}
	delete(s.participants, c)
	return true
}

// hasUsername reports whether any remaining connection belongs to username.
// A user editing the same file from two tabs stays present until both close.
func (s *FileSession) hasUsername(username string) bool {
	for c := range s.participants {
		if c.Username == username {
			return true
		}
	}
	return false
}

// dropCursor removes the username's cursor unless another of their
// connections is still participating. Cursors only exist for participants.
func (s *FileSession) dropCursor(username string) bool {
	if s.hasUsername(username) {
		return false
	}
	if _, ok := s.cursors[username]; !ok {
		return false
	}
	delete(s.cursors, username)
	return true
}

func (s *FileSession) empty() bool {
	return len(s.participants) == 0
}

// broadcast sends an event to all participants except the given one.
func (s *FileSession) broadcast(event *Event, except *Client) {
	for c := range s.participants {
		if c == except {
			continue
		}
		c.send(event)
	}
}

func (s *FileSession) usernames() []string {
	seen := make(map[string]struct{}, len(s.participants))
	names := make([]string, 0, len(s.participants))
	for c := range s.participants {
		if _, ok := seen[c.Username]; ok {
			continue
		}
		seen[c.Username] = struct{}{}
		names = append(names, c.Username)
	}
	return names
}

func (s *FileSession) snapshotCursors() map[string]Position {
	cursors := make(map[string]Position, len(s.cursors))
	for username, pos := range s.cursors {
		cursors[username] = pos
	}
	return cursors
}

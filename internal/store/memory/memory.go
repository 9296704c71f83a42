package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coedit/coedit-server/internal/store"
)

// MemoryStore implements store.Store with in-process maps.
// It backs tests and database-less development runs.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*store.User    // keyed by username
	projects map[string]*store.Project // keyed by project id
	files    map[string]*store.File    // keyed by file id
	presence map[presenceKey]*store.PresenceEntry
}

type presenceKey struct {
	projectID string
	fileID    string
	username  string
}

// New creates an empty in-memory store.
func New() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*store.User),
		projects: make(map[string]*store.Project),
		files:    make(map[string]*store.File),
		presence: make(map[presenceKey]*store.PresenceEntry),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// SeedProject inserts a project and its files, for tests and dev runs.
func (s *MemoryStore) SeedProject(project *store.Project, files ...*store.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *project
	s.projects[project.ID] = &cp
	for _, f := range files {
		fc := *f
		s.files[f.ID] = &fc
	}
}

// ==== UserStore implementation ====

func (s *MemoryStore) CreateUser(_ context.Context, user *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *user
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.users[cp.Username] = &cp
	return nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *MemoryStore) UserExists(_ context.Context, username, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[username]; ok {
		return true, nil
	}
	for _, user := range s.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// ==== ProjectStore implementation ====

func (s *MemoryStore) GetProjectName(_ context.Context, projectID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.projects[projectID]
	if !ok {
		return "", store.ErrNotFound
	}
	return project.Name, nil
}

func (s *MemoryStore) ListFiles(_ context.Context, projectID string) ([]*store.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var files []*store.File
	for _, f := range s.files {
		if f.ProjectID == projectID {
			cp := *f
			files = append(files, &cp)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (s *MemoryStore) ListInitialTabs(_ context.Context, projectID string) ([]*store.InitialTab, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tabs []*store.InitialTab
	for key, entry := range s.presence {
		if key.projectID != projectID {
			continue
		}
		file, ok := s.files[key.fileID]
		if !ok {
			continue
		}
		tabs = append(tabs, &store.InitialTab{
			FileID:        file.ID,
			FileName:      file.Name,
			ProjectID:     entry.ProjectID,
			Username:      entry.Username,
			IsActiveInTab: entry.IsActiveInTab,
			IsLive:        entry.IsLive,
			Timestamp:     entry.Timestamp,
		})
	}
	sort.Slice(tabs, func(i, j int) bool { return tabs[i].Timestamp.Before(tabs[j].Timestamp) })
	return tabs, nil
}

// ==== PresenceStore implementation ====

func (s *MemoryStore) UpsertPresence(_ context.Context, entry *store.PresenceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.presence[presenceKey{entry.ProjectID, entry.FileID, entry.Username}] = &cp
	return nil
}

func (s *MemoryStore) SetLive(_ context.Context, projectID, username string, live bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.presence {
		if key.projectID == projectID && key.username == username {
			entry.IsLive = live
		}
	}
	return nil
}

func (s *MemoryStore) DeactivateTabs(_ context.Context, projectID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.presence {
		if key.projectID == projectID && key.username == username {
			entry.IsActiveInTab = false
		}
	}
	return nil
}

func (s *MemoryStore) ListLiveUsers(_ context.Context, projectID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for key, entry := range s.presence {
		if key.projectID == projectID && entry.IsLive {
			seen[key.username] = struct{}{}
		}
	}

	usernames := make([]string, 0, len(seen))
	for username := range seen {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)
	return usernames, nil
}

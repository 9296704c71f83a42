package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// User represents an account in the system.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Project represents a workspace owned by a user.
type Project struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

// File represents one file inside a project.
type File struct {
	ID        string
	ProjectID string
	Name      string
	CreatedAt time.Time
}

// PresenceEntry is one live_users cache row: whether a user currently has a
// file open as their active tab and whether they are connected at all.
// The in-memory registry is the source of truth for liveness; these rows only
// exist so the frontend can render initial tabs after a reload.
type PresenceEntry struct {
	ProjectID     string
	FileID        string
	Username      string
	IsActiveInTab bool
	IsLive        bool
	Timestamp     time.Time
}

// InitialTab is a file row joined with its presence cache entry, shaped for
// the get-initial-tabs endpoint.
type InitialTab struct {
	FileID        string
	FileName      string
	ProjectID     string
	Username      string
	IsActiveInTab bool
	IsLive        bool
	Timestamp     time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser inserts a new account row.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// UserExists reports whether an account with the username or email exists.
	UserExists(ctx context.Context, username, email string) (bool, error)
}

// ProjectStore handles project and file metadata.
type ProjectStore interface {
	// GetProjectName retrieves the display name of a project.
	GetProjectName(ctx context.Context, projectID string) (string, error)

	// ListFiles lists the files of a project.
	ListFiles(ctx context.Context, projectID string) ([]*File, error)

	// ListInitialTabs returns file rows joined with presence cache entries,
	// used to restore a user's tabs on reload.
	ListInitialTabs(ctx context.Context, projectID string) ([]*InitialTab, error)
}

// PresenceStore handles the live_users presence cache.
// Writes are best-effort from the hub's point of view; live correctness never
// depends on them.
type PresenceStore interface {
	// UpsertPresence inserts or updates one (project, file, user) entry.
	UpsertPresence(ctx context.Context, entry *PresenceEntry) error

	// SetLive flips the is_live flag on every entry of a user in a project.
	SetLive(ctx context.Context, projectID, username string, live bool) error

	// DeactivateTabs clears is_active_in_tab on every entry of a user in a
	// project. Called before activating a new tab to keep at most one active.
	DeactivateTabs(ctx context.Context, projectID, username string) error

	// ListLiveUsers returns usernames with at least one live entry in the project.
	ListLiveUsers(ctx context.Context, projectID string) ([]string, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ProjectStore
	PresenceStore

	// Close closes the underlying database connection.
	Close() error
}

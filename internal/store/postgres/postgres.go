package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coedit/coedit-server/internal/store"
)

// PostgresStore implements store.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects to the database and verifies the connection.
// databaseURL is a postgres:// connection string.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ==== UserStore implementation ====

// CreateUser inserts a new account row.
func (s *PostgresStore) CreateUser(ctx context.Context, user *store.User) error {
	query := `
		INSERT INTO users (id, firstname, lastname, username, email, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Username,
		user.Email,
		user.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByUsername retrieves a user by username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, firstname, lastname, username, email, password_hash, created_at
		FROM users
		WHERE username = $1
	`
	var user store.User
	err := s.pool.QueryRow(ctx, query, username).Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// UserExists reports whether an account with the username or email exists.
func (s *PostgresStore) UserExists(ctx context.Context, username, email string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM users WHERE username = $1 OR email = $2
		)
	`
	var exists bool
	if err := s.pool.QueryRow(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("query user exists: %w", err)
	}
	return exists, nil
}

// ==== ProjectStore implementation ====

// GetProjectName retrieves the display name of a project.
func (s *PostgresStore) GetProjectName(ctx context.Context, projectID string) (string, error) {
	query := `SELECT name FROM projects WHERE id = $1`

	var name string
	if err := s.pool.QueryRow(ctx, query, projectID).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("query project name: %w", err)
	}
	return name, nil
}

// ListFiles lists the files of a project.
func (s *PostgresStore) ListFiles(ctx context.Context, projectID string) ([]*store.File, error) {
	query := `
		SELECT id, project_id, name, created_at
		FROM files
		WHERE project_id = $1
		ORDER BY name
	`
	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []*store.File
	for rows.Next() {
		var f store.File
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Name, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}

	return files, nil
}

// ListInitialTabs returns file rows joined with presence cache entries.
func (s *PostgresStore) ListInitialTabs(ctx context.Context, projectID string) ([]*store.InitialTab, error) {
	query := `
		SELECT f.id, f.name, lu.project_id, lu.username,
		       lu.is_active_in_tab, lu.is_live, lu.live_users_timestamp
		FROM live_users lu
		JOIN files f ON f.id = lu.file_id
		WHERE lu.project_id = $1
		ORDER BY lu.live_users_timestamp
	`
	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query initial tabs: %w", err)
	}
	defer rows.Close()

	var tabs []*store.InitialTab
	for rows.Next() {
		var t store.InitialTab
		if err := rows.Scan(
			&t.FileID,
			&t.FileName,
			&t.ProjectID,
			&t.Username,
			&t.IsActiveInTab,
			&t.IsLive,
			&t.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan initial tab: %w", err)
		}
		tabs = append(tabs, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate initial tabs: %w", err)
	}

	return tabs, nil
}

// ==== PresenceStore implementation ====

// UpsertPresence inserts or updates one (project, file, user) entry.
func (s *PostgresStore) UpsertPresence(ctx context.Context, entry *store.PresenceEntry) error {
	query := `
		INSERT INTO live_users (project_id, file_id, username, is_active_in_tab, is_live, live_users_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (project_id, file_id, username)
		DO UPDATE SET
			is_active_in_tab = EXCLUDED.is_active_in_tab,
			is_live = EXCLUDED.is_live,
			live_users_timestamp = EXCLUDED.live_users_timestamp
	`
	_, err := s.pool.Exec(ctx, query,
		entry.ProjectID,
		entry.FileID,
		entry.Username,
		entry.IsActiveInTab,
		entry.IsLive,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert presence: %w", err)
	}
	return nil
}

// SetLive flips the is_live flag on every entry of a user in a project.
func (s *PostgresStore) SetLive(ctx context.Context, projectID, username string, live bool) error {
	query := `
		UPDATE live_users
		SET is_live = $3
		WHERE project_id = $1 AND username = $2
	`
	if _, err := s.pool.Exec(ctx, query, projectID, username, live); err != nil {
		return fmt.Errorf("set live: %w", err)
	}
	return nil
}

// DeactivateTabs clears is_active_in_tab on every entry of a user in a project.
func (s *PostgresStore) DeactivateTabs(ctx context.Context, projectID, username string) error {
	query := `
		UPDATE live_users
		SET is_active_in_tab = FALSE
		WHERE project_id = $1 AND username = $2
	`
	if _, err := s.pool.Exec(ctx, query, projectID, username); err != nil {
		return fmt.Errorf("deactivate tabs: %w", err)
	}
	return nil
}

// ListLiveUsers returns usernames with at least one live entry in the project.
func (s *PostgresStore) ListLiveUsers(ctx context.Context, projectID string) ([]string, error) {
	query := `
		SELECT DISTINCT username
		FROM live_users
		WHERE project_id = $1 AND is_live = TRUE
		ORDER BY username
	`
	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query live users: %w", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("scan live user: %w", err)
		}
		usernames = append(usernames, username)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate live users: %w", err)
	}

	return usernames, nil
}

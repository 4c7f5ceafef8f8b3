package view

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// ErrNotRegistered is returned when a view mutation targets a user that has
// never been registered.
var ErrNotRegistered = errors.New("user not registered")

// viewColumns is the header of the user view table.
var viewColumns = []string{"user_id", "last_msg_id", "chat_id"}

// UserView is the last rendered view for one user. LastMessageID and ChatID
// are empty until the first successful render.
type UserView struct {
	UserID        string
	LastMessageID string
	ChatID        string
}

// ViewsConfig holds the configuration for Views.
type ViewsConfig struct {
	Logger *slog.Logger

	// Path is the CSV file backing the user view table.
	Path string
}

// Views is the durable per-user record of the last rendered view. The whole
// table is rewritten on every mutation; acceptable at the expected scale of
// tens to low-thousands of users.
type Views struct {
	mu     sync.Mutex
	logger *slog.Logger
	path   string
	byID   map[string]*UserView
	order  []string
}

// NewViews creates a new Views table.
func NewViews(cfg *ViewsConfig) (*Views, error) {
	if cfg == nil {
		return nil, errors.New("views config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Path == "" {
		return nil, errors.New("views table path cannot be empty")
	}

	return &Views{
		logger: cfg.Logger,
		path:   cfg.Path,
		byID:   make(map[string]*UserView),
	}, nil
}

// Load reads the user view table from disk. A missing file is an empty
// table, not an error.
func (v *Views) Load() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	f, err := os.Open(v.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open user view table: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(viewColumns)

	// Header row first.
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read user view header: %w", err)
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read user view table: %w", err)
		}

		uv := &UserView{UserID: row[0], LastMessageID: row[1], ChatID: row[2]}
		v.byID[uv.UserID] = uv
		v.order = append(v.order, uv.UserID)
	}

	v.logger.Info("user view table loaded", "users", len(v.order))
	return nil
}

// Find returns the current view record for a user. Absence means the user
// has never received a render; it is a state, not an error.
func (v *Views) Find(userID string) (UserView, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	uv, ok := v.byID[userID]
	if !ok {
		return UserView{}, false
	}
	return *uv, true
}

// Register adds a user with no rendered view yet. Registering an existing
// user is a no-op.
func (v *Views) Register(userID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.byID[userID]; ok {
		return nil
	}

	v.byID[userID] = &UserView{UserID: userID}
	v.order = append(v.order, userID)

	return v.save()
}

// SetLast records the message and chat identity of the user's current view
// and persists the table. Returns ErrNotRegistered for unknown users.
func (v *Views) SetLast(userID, messageID, chatID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	uv, ok := v.byID[userID]
	if !ok {
		return fmt.Errorf("set last view for user %s: %w", userID, ErrNotRegistered)
	}

	uv.LastMessageID = messageID
	uv.ChatID = chatID

	return v.save()
}

// save rewrites the whole table. Caller must hold v.mu.
func (v *Views) save() error {
	f, err := os.Create(v.path)
	if err != nil {
		return fmt.Errorf("create user view table: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(viewColumns); err != nil {
		_ = f.Close()
		return fmt.Errorf("write user view header: %w", err)
	}
	for _, id := range v.order {
		uv := v.byID[id]
		if err := w.Write([]string{uv.UserID, uv.LastMessageID, uv.ChatID}); err != nil {
			_ = f.Close()
			return fmt.Errorf("write user view row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush user view table: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close user view table: %w", err)
	}

	return nil
}

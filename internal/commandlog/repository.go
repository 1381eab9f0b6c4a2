// Package commandlog records actuator commands accepted by the relay so
// operators can see what was requested and how it was delivered.
package commandlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Delivery sources recorded with each command.
const (
	SourceBroker = "broker"
	SourceLocal  = "local"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// timeLayout is fixed-width so created_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Command is one accepted actuator command.
type Command struct {
	ID                 string    `json:"id"`
	ActuatorOn         bool      `json:"actuatorOn"`
	DeliveredViaBroker bool      `json:"deliveredViaBroker"`
	Source             string    `json:"source"`
	Error              string    `json:"error,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Filter controls which commands List returns.
type Filter struct {
	Limit  int // default 50, max 200
	Offset int
}

// ListResult contains a page of commands, most recent first.
type ListResult struct {
	Commands []Command `json:"commands"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// Repository defines the interface for command log operations.
type Repository interface {
	Create(ctx context.Context, cmd *Command) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores commands in the actuator_commands table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new command log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a command. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, cmd *Command) error {
	if cmd.ID == "" {
		cmd.ID = "cmd-" + uuid.NewString()
	}
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}
	if cmd.Source == "" {
		cmd.Source = SourceLocal
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO actuator_commands (id, actuator_on, delivered_via_broker, source, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cmd.ID, boolToInt(cmd.ActuatorOn), boolToInt(cmd.DeliveredViaBroker),
		cmd.Source, nullableString(cmd.Error),
		cmd.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting actuator command: %w", err)
	}

	return nil
}

// List returns commands ordered by most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter = clampFilter(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM actuator_commands").Scan(&total); err != nil {
		return nil, fmt.Errorf("counting actuator commands: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, actuator_on, delivered_via_broker, source, error, created_at
		 FROM actuator_commands
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying actuator commands: %w", err)
	}
	defer rows.Close()

	commands := make([]Command, 0, filter.Limit)
	for rows.Next() {
		var (
			cmd           Command
			on, delivered int
			errText       sql.NullString
			createdAt     string
		)
		if err := rows.Scan(&cmd.ID, &on, &delivered, &cmd.Source, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning actuator command: %w", err)
		}

		cmd.ActuatorOn = on == 1
		cmd.DeliveredViaBroker = delivered == 1
		cmd.Error = errText.String

		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing command timestamp %q: %w", createdAt, err)
		}
		cmd.CreatedAt = t

		commands = append(commands, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating actuator commands: %w", err)
	}

	return &ListResult{
		Commands: commands,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}, nil
}

func clampFilter(f Filter) Filter {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// nullableString maps "" to NULL for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/vovakirdan/wirechat-realtime/internal/store"
)

// Schema is the full DDL applied by New. Tests may apply it through NewWithSetup.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	country_code  TEXT NOT NULL DEFAULT '+1',
	phone_number  TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversations (
	id            TEXT PRIMARY KEY,
	participant_a TEXT NOT NULL,
	participant_b TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	requested_by  TEXT NOT NULL,
	accepted_at   DATETIME,
	last_text     TEXT,
	last_sender   TEXT,
	last_at       DATETIME,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (participant_a, participant_b)
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	sender_id       TEXT NOT NULL,
	recipient_id    TEXT NOT NULL,
	text            TEXT NOT NULL,
	created_at      DATETIME NOT NULL,
	FOREIGN KEY (conversation_id) REFERENCES conversations(id)
);

CREATE TABLE IF NOT EXISTS groups (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	owner_id    TEXT NOT NULL,
	last_text   TEXT,
	last_sender TEXT,
	last_at     DATETIME,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id  TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	role      TEXT NOT NULL DEFAULT 'member',
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (group_id, user_id),
	FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS group_messages (
	id         TEXT PRIMARY KEY,
	group_id   TEXT NOT NULL,
	sender_id  TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id);
CREATE INDEX IF NOT EXISTS idx_group_messages_group ON group_messages(group_id, created_at DESC);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, countryCode, phoneNumber, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (id, name, country_code, phone_number, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, query, id, name, countryCode, phoneNumber, passwordHash, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, name, country_code, phone_number, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByPhone retrieves a user by phone number.
func (s *SQLiteStore) GetUserByPhone(ctx context.Context, phoneNumber string) (*store.User, error) {
	query := `
		SELECT id, name, country_code, phone_number, password_hash, created_at
		FROM users
		WHERE phone_number = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, phoneNumber))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.CountryCode,
		&user.PhoneNumber,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// ==== ConversationStore implementation ====

const conversationColumns = `
	id, participant_a, participant_b, status, requested_by, accepted_at,
	last_text, last_sender, last_at, created_at, updated_at
`

// FindConversationByParticipants returns the conversation between a and b in either order.
func (s *SQLiteStore) FindConversationByParticipants(ctx context.Context, a, b string) (*store.Conversation, error) {
	first, second := orderedPair(a, b)
	query := `SELECT ` + conversationColumns + `
		FROM conversations
		WHERE participant_a = ? AND participant_b = ?
	`
	return scanConversation(s.db.QueryRowContext(ctx, query, first, second))
}

// FindConversationByID retrieves a conversation by ID.
func (s *SQLiteStore) FindConversationByID(ctx context.Context, id string) (*store.Conversation, error) {
	query := `SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = ?
	`
	return scanConversation(s.db.QueryRowContext(ctx, query, id))
}

// SaveConversation inserts or updates a conversation.
func (s *SQLiteStore) SaveConversation(ctx context.Context, c *store.Conversation) error {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.Status == "" {
		c.Status = store.ConversationStatusPending
	}
	c.UpdatedAt = now

	first, second := orderedPair(c.Participants[0], c.Participants[1])
	lastText, lastSender, lastAt := splitLastMessage(c.LastMessage)

	query := `
		INSERT INTO conversations (
			id, participant_a, participant_b, status, requested_by, accepted_at,
			last_text, last_sender, last_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status      = excluded.status,
			accepted_at = excluded.accepted_at,
			last_text   = excluded.last_text,
			last_sender = excluded.last_sender,
			last_at     = excluded.last_at,
			updated_at  = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, first, second, string(c.Status), c.RequestedBy, nullTime(c.AcceptedAt),
		lastText, lastSender, lastAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// UpdateConversationLastMessage writes the summary columns unless a newer summary is stored.
func (s *SQLiteStore) UpdateConversationLastMessage(ctx context.Context, conversationID string, lm *store.LastMessage) error {
	if err := s.updateLastMessage(ctx, "conversations", conversationID, lm); err != nil {
		return fmt.Errorf("update conversation last message: %w", err)
	}
	return nil
}

func scanConversation(row *sql.Row) (*store.Conversation, error) {
	var (
		c          store.Conversation
		status     string
		acceptedAt sql.NullTime
		lastText   sql.NullString
		lastSender sql.NullString
		lastAt     sql.NullTime
	)
	err := row.Scan(
		&c.ID,
		&c.Participants[0],
		&c.Participants[1],
		&status,
		&c.RequestedBy,
		&acceptedAt,
		&lastText,
		&lastSender,
		&lastAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	c.Status = store.ConversationStatus(status)
	if acceptedAt.Valid {
		c.AcceptedAt = &acceptedAt.Time
	}
	c.LastMessage = joinLastMessage(lastText, lastSender, lastAt)
	return &c, nil
}

// ==== MessageStore implementation ====

// CreateMessage persists a direct message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, conversationID, senderID, recipientID, text string) (*store.Message, error) {
	msg := &store.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, recipient_id, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, msg.ID, msg.ConversationID, msg.SenderID, msg.RecipientID, msg.Text, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// CountMessages returns the number of messages stored for a conversation.
func (s *SQLiteStore) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// ==== GroupStore implementation ====

// FindGroupByID retrieves a group with its member list.
func (s *SQLiteStore) FindGroupByID(ctx context.Context, id string) (*store.Group, error) {
	query := `
		SELECT id, name, description, owner_id, last_text, last_sender, last_at, created_at, updated_at
		FROM groups
		WHERE id = ?
	`
	var (
		g          store.Group
		lastText   sql.NullString
		lastSender sql.NullString
		lastAt     sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&g.ID,
		&g.Name,
		&g.Description,
		&g.OwnerID,
		&lastText,
		&lastSender,
		&lastAt,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query group: %w", err)
	}
	g.LastMessage = joinLastMessage(lastText, lastSender, lastAt)

	members, err := s.listGroupMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Members = members

	return &g, nil
}

func (s *SQLiteStore) listGroupMembers(ctx context.Context, groupID string) ([]store.GroupMember, error) {
	query := `
		SELECT user_id, role, joined_at FROM group_members
		WHERE group_id = ?
		ORDER BY joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	var members []store.GroupMember
	for rows.Next() {
		var (
			m    store.GroupMember
			role string
		)
		if err := rows.Scan(&m.UserID, &role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		m.Role = store.GroupRole(role)
		members = append(members, m)
	}

	return members, rows.Err()
}

// SaveGroup inserts or updates a group and replaces its member list.
func (s *SQLiteStore) SaveGroup(ctx context.Context, g *store.Group) error {
	now := time.Now().UTC()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op
	}()

	lastText, lastSender, lastAt := splitLastMessage(g.LastMessage)
	query := `
		INSERT INTO groups (id, name, description, owner_id, last_text, last_sender, last_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name        = excluded.name,
			description = excluded.description,
			owner_id    = excluded.owner_id,
			last_text   = excluded.last_text,
			last_sender = excluded.last_sender,
			last_at     = excluded.last_at,
			updated_at  = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query,
		g.ID, g.Name, g.Description, g.OwnerID, lastText, lastSender, lastAt, g.CreatedAt, g.UpdatedAt,
	); err != nil {
		return fmt.Errorf("save group: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, g.ID); err != nil {
		return fmt.Errorf("clear group members: %w", err)
	}

	memberQuery := `
		INSERT INTO group_members (group_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`
	for i := range g.Members {
		m := &g.Members[i]
		if m.Role == "" {
			m.Role = store.GroupRoleMember
		}
		if m.JoinedAt.IsZero() {
			m.JoinedAt = now
		}
		if _, err := tx.ExecContext(ctx, memberQuery, g.ID, m.UserID, string(m.Role), m.JoinedAt); err != nil {
			return fmt.Errorf("add group member %s: %w", m.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UpdateGroupLastMessage writes the summary columns unless a newer summary is stored.
func (s *SQLiteStore) UpdateGroupLastMessage(ctx context.Context, groupID string, lm *store.LastMessage) error {
	if err := s.updateLastMessage(ctx, "groups", groupID, lm); err != nil {
		return fmt.Errorf("update group last message: %w", err)
	}
	return nil
}

// ==== GroupMessageStore implementation ====

// CreateGroupMessage persists a group message.
func (s *SQLiteStore) CreateGroupMessage(ctx context.Context, groupID, senderID, text string) (*store.GroupMessage, error) {
	msg := &store.GroupMessage{
		ID:        ulid.Make().String(),
		GroupID:   groupID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	query := `
		INSERT INTO group_messages (id, group_id, sender_id, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, msg.ID, msg.GroupID, msg.SenderID, msg.Text, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert group message: %w", err)
	}
	return msg, nil
}

func orderedPair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// updateLastMessage is shared by conversations and groups, whose summary columns match.
// Timestamps are stored as UTC text, so the last_at guard compares in order.
func (s *SQLiteStore) updateLastMessage(ctx context.Context, table, id string, lm *store.LastMessage) error {
	if lm == nil {
		return nil
	}
	at := lm.At.UTC()
	query := `UPDATE ` + table + `
		SET last_text = ?, last_sender = ?, last_at = ?, updated_at = ?
		WHERE id = ? AND (last_at IS NULL OR last_at <= ?)
	`
	_, err := s.db.ExecContext(ctx, query, lm.Text, lm.SenderID, at, time.Now().UTC(), id, at)
	return err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func splitLastMessage(lm *store.LastMessage) (sql.NullString, sql.NullString, sql.NullTime) {
	if lm == nil {
		return sql.NullString{}, sql.NullString{}, sql.NullTime{}
	}
	return sql.NullString{String: lm.Text, Valid: true},
		sql.NullString{String: lm.SenderID, Valid: true},
		sql.NullTime{Time: lm.At, Valid: true}
}

func joinLastMessage(text, sender sql.NullString, at sql.NullTime) *store.LastMessage {
	if !text.Valid && !sender.Valid {
		return nil
	}
	return &store.LastMessage{Text: text.String, SenderID: sender.String, At: at.Time}
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)

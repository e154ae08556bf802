package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/naperu/wabarelay/internal/domain"
)

const chatColumns = `wa_id, is_group, group_name, last_message, timestamp, unread_count,
	is_typing, is_muted, is_pinned, is_blocked`

const messageColumns = `id, chat_wa_id, sender, content, timestamp, status, file, file_name,
	reference_content, waba_message_id`

func scanChat(row pgx.Row) (*domain.Chat, error) {
	chat := &domain.Chat{Participants: []domain.Participant{}}
	err := row.Scan(
		&chat.WaID, &chat.IsGroup, &chat.GroupName, &chat.LastMessage, &chat.Timestamp,
		&chat.UnreadCount, &chat.IsTyping, &chat.IsMuted, &chat.IsPinned, &chat.IsBlocked,
	)
	return chat, err
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	msg := &domain.Message{Reactions: []domain.Reaction{}}
	err := row.Scan(
		&msg.ID, &msg.ChatWaID, &msg.Sender, &msg.Content, &msg.Timestamp, &msg.Status,
		&msg.File, &msg.FileName, &msg.ReferenceContent, &msg.WabaMessageID,
	)
	return msg, err
}

// PostgresChatRepository handles chat data access
type PostgresChatRepository struct {
	db *pgxpool.Pool
}

func (r *PostgresChatRepository) GetOrCreate(ctx context.Context, waID string) (*domain.Chat, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	chat, err := scanChat(r.db.QueryRow(ctx, `
		INSERT INTO chats (wa_id) VALUES ($1)
		ON CONFLICT (wa_id) DO UPDATE SET wa_id = EXCLUDED.wa_id
		RETURNING `+chatColumns, waID))
	if err != nil {
		return nil, err
	}
	if err := r.loadParticipants(ctx, []*domain.Chat{chat}); err != nil {
		return nil, err
	}
	return chat, nil
}

func (r *PostgresChatRepository) GetByWaID(ctx context.Context, waID string) (*domain.Chat, error) {
	chat, err := scanChat(r.db.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE wa_id = $1`, waID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadParticipants(ctx, []*domain.Chat{chat}); err != nil {
		return nil, err
	}
	return chat, nil
}

func (r *PostgresChatRepository) CreateGroup(ctx context.Context, waID, groupName string) (*domain.Chat, error) {
	chat, err := scanChat(r.db.QueryRow(ctx, `
		INSERT INTO chats (wa_id, is_group, group_name) VALUES ($1, TRUE, $2)
		ON CONFLICT (wa_id) DO UPDATE SET is_group = TRUE, group_name = EXCLUDED.group_name
		RETURNING `+chatColumns, waID, groupName))
	if err != nil {
		return nil, err
	}
	if err := r.loadParticipants(ctx, []*domain.Chat{chat}); err != nil {
		return nil, err
	}
	return chat, nil
}

func (r *PostgresChatRepository) List(ctx context.Context) ([]*domain.Chat, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+chatColumns+` FROM chats
		ORDER BY is_pinned DESC, timestamp DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*domain.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadParticipants(ctx, chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *PostgresChatRepository) loadParticipants(ctx context.Context, chats []*domain.Chat) error {
	if len(chats) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Chat, len(chats))
	ids := make([]string, 0, len(chats))
	for _, c := range chats {
		byID[c.WaID] = c
		ids = append(ids, c.WaID)
	}

	rows, err := r.db.Query(ctx, `
		SELECT chat_wa_id, wa_id, name, is_admin FROM chat_participants
		WHERE chat_wa_id = ANY($1)
		ORDER BY position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var chatID string
		var p domain.Participant
		if err := rows.Scan(&chatID, &p.WaID, &p.Name, &p.IsAdmin); err != nil {
			return err
		}
		if c, ok := byID[chatID]; ok {
			c.Participants = append(c.Participants, p)
		}
	}
	return rows.Err()
}

func (r *PostgresChatRepository) UpsertSummary(ctx context.Context, waID, lastMessage string, ts time.Time, incrementUnread bool) error {
	initialUnread := 0
	query := `
		INSERT INTO chats (wa_id, last_message, timestamp, unread_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (wa_id) DO UPDATE SET
			last_message = EXCLUDED.last_message,
			timestamp = EXCLUDED.timestamp`
	if incrementUnread {
		initialUnread = 1
		query += `, unread_count = chats.unread_count + 1`
	}
	_, err := r.db.Exec(ctx, query, waID, lastMessage, ts, initialUnread)
	return err
}

func (r *PostgresChatRepository) MarkRead(ctx context.Context, waID string) error {
	_, err := r.db.Exec(ctx, `UPDATE chats SET unread_count = 0 WHERE wa_id = $1`, waID)
	return err
}

func (r *PostgresChatRepository) Toggle(ctx context.Context, waID string, flag ChatFlag) (bool, error) {
	if !flag.valid() {
		return false, fmt.Errorf("unknown chat flag %q: %w", flag, domain.ErrBadInput)
	}
	col := string(flag)
	var value bool
	err := r.db.QueryRow(ctx,
		`UPDATE chats SET `+col+` = NOT `+col+` WHERE wa_id = $1 RETURNING `+col, waID,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("chat %s: %w", waID, domain.ErrNotFound)
	}
	return value, err
}

func (r *PostgresChatRepository) AddParticipant(ctx context.Context, groupWaID string, p domain.Participant) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO chat_participants (chat_wa_id, wa_id, name, is_admin)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_wa_id, wa_id) DO NOTHING`,
		groupWaID, p.WaID, p.Name, p.IsAdmin)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("participant %s already in group %s: %w", p.WaID, groupWaID, domain.ErrBadInput)
	}
	return nil
}

func (r *PostgresChatRepository) RemoveParticipant(ctx context.Context, groupWaID, waID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM chat_participants WHERE chat_wa_id = $1 AND wa_id = $2`, groupWaID, waID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("participant %s in group %s: %w", waID, groupWaID, domain.ErrNotFound)
	}
	return nil
}

// PostgresMessageRepository handles message data access
type PostgresMessageRepository struct {
	db *pgxpool.Pool
}

func (r *PostgresMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO messages (id, chat_wa_id, sender, content, timestamp, status, file, file_name,
		                      reference_content, waba_message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		msg.ID, msg.ChatWaID, msg.Sender, msg.Content, msg.Timestamp, msg.Status, msg.File,
		msg.FileName, msg.ReferenceContent, msg.WabaMessageID,
	)
	if err != nil {
		return fmt.Errorf("insert message %s: %w", msg.ID, err)
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	msg, err := scanMessage(r.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadReactions(ctx, []*domain.Message{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *PostgresMessageRepository) ListByChat(ctx context.Context, chatWaID string) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE chat_wa_id = $1
		ORDER BY seq`, chatWaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadReactions(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) loadReactions(ctx context.Context, messages []*domain.Message) error {
	if len(messages) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Message, len(messages))
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	rows, err := r.db.Query(ctx, `
		SELECT message_id, user_id, emoji FROM message_reactions
		WHERE message_id = ANY($1)
		ORDER BY seq`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var messageID string
		var reaction domain.Reaction
		if err := rows.Scan(&messageID, &reaction.User, &reaction.Emoji); err != nil {
			return err
		}
		if m, ok := byID[messageID]; ok {
			m.Reactions = append(m.Reactions, reaction)
		}
	}
	return rows.Err()
}

func (r *PostgresMessageRepository) mustGet(ctx context.Context, id string) (*domain.Message, error) {
	msg, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	return msg, nil
}

func (r *PostgresMessageRepository) ReactTo(ctx context.Context, messageID, userID, emoji string) (*domain.Message, error) {
	if _, err := r.mustGet(ctx, messageID); err != nil {
		return nil, err
	}
	if _, err := r.db.Exec(ctx,
		`DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2`, messageID, userID,
	); err != nil {
		return nil, err
	}
	// A concurrent ReactTo for the same user can land between the two
	// statements; the conflict clause keeps the last write.
	if _, err := r.db.Exec(ctx, `
		INSERT INTO message_reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO UPDATE SET emoji = EXCLUDED.emoji`,
		messageID, userID, emoji,
	); err != nil {
		return nil, err
	}
	return r.mustGet(ctx, messageID)
}

func (r *PostgresMessageRepository) RemoveReaction(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	if _, err := r.mustGet(ctx, messageID); err != nil {
		return nil, err
	}
	if _, err := r.db.Exec(ctx,
		`DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2`, messageID, userID,
	); err != nil {
		return nil, err
	}
	return r.mustGet(ctx, messageID)
}

func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, messageID, requesterID string) (*domain.Message, error) {
	msg, err := r.mustGet(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Sender != requesterID {
		return nil, fmt.Errorf("message %s belongs to another sender: %w", messageID, domain.ErrForbidden)
	}
	if _, err := r.db.Exec(ctx, `
		UPDATE messages SET content = $2, file = NULL, reference_content = NULL
		WHERE id = $1`, messageID, domain.Tombstone,
	); err != nil {
		return nil, err
	}
	return r.mustGet(ctx, messageID)
}

// PostgresContactRepository handles contact data access
type PostgresContactRepository struct {
	db *pgxpool.Pool
}

func (r *PostgresContactRepository) List(ctx context.Context) ([]*domain.Contact, error) {
	rows, err := r.db.Query(ctx, `
		SELECT wa_id, name, profile_pic, is_online, last_seen FROM contacts
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []*domain.Contact{}
	for rows.Next() {
		c := &domain.Contact{}
		if err := rows.Scan(&c.WaID, &c.Name, &c.ProfilePic, &c.IsOnline, &c.LastSeen); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *PostgresContactRepository) GetByWaID(ctx context.Context, waID string) (*domain.Contact, error) {
	c := &domain.Contact{}
	err := r.db.QueryRow(ctx, `
		SELECT wa_id, name, profile_pic, is_online, last_seen FROM contacts WHERE wa_id = $1`, waID,
	).Scan(&c.WaID, &c.Name, &c.ProfilePic, &c.IsOnline, &c.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *PostgresContactRepository) Upsert(ctx context.Context, c *domain.Contact) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO contacts (wa_id, name, profile_pic, is_online, last_seen)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (wa_id) DO UPDATE SET
			name = EXCLUDED.name,
			profile_pic = EXCLUDED.profile_pic,
			is_online = EXCLUDED.is_online,
			last_seen = EXCLUDED.last_seen`,
		c.WaID, c.Name, c.ProfilePic, c.IsOnline, c.LastSeen)
	return err
}

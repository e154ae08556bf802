package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/naperu/wabarelay/internal/domain"
)

// ChatFlag names a boolean chat setting that viewers can toggle.
type ChatFlag string

const (
	FlagPinned  ChatFlag = "is_pinned"
	FlagMuted   ChatFlag = "is_muted"
	FlagBlocked ChatFlag = "is_blocked"
)

func (f ChatFlag) valid() bool {
	switch f {
	case FlagPinned, FlagMuted, FlagBlocked:
		return true
	}
	return false
}

// ChatRepository persists chats and their summary fields. Lookups that
// find nothing return nil, nil.
type ChatRepository interface {
	// GetOrCreate returns the chat for waID, creating it with default
	// flags and no participants on first use.
	GetOrCreate(ctx context.Context, waID string) (*domain.Chat, error)
	GetByWaID(ctx context.Context, waID string) (*domain.Chat, error)
	// CreateGroup registers a group chat. An existing chat with the same
	// waID is converted into a group.
	CreateGroup(ctx context.Context, waID, groupName string) (*domain.Chat, error)
	// List returns pinned chats first, then by most recent activity.
	List(ctx context.Context) ([]*domain.Chat, error)
	// UpsertSummary get-or-creates the chat and sets lastMessage and
	// timestamp. unreadCount is incremented by one when incrementUnread.
	UpsertSummary(ctx context.Context, waID, lastMessage string, ts time.Time, incrementUnread bool) error
	MarkRead(ctx context.Context, waID string) error
	// Toggle flips flag and returns the new value, or ErrNotFound.
	Toggle(ctx context.Context, waID string, flag ChatFlag) (bool, error)
	AddParticipant(ctx context.Context, groupWaID string, p domain.Participant) error
	RemoveParticipant(ctx context.Context, groupWaID, waID string) error
}

// MessageRepository persists messages. Messages are never physically
// removed.
type MessageRepository interface {
	Insert(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	// ListByChat returns messages in insertion order.
	ListByChat(ctx context.Context, chatWaID string) ([]*domain.Message, error)
	// ReactTo removes any reaction userID has on the message and then
	// appends the new one. The two steps are not atomic.
	ReactTo(ctx context.Context, messageID, userID, emoji string) (*domain.Message, error)
	RemoveReaction(ctx context.Context, messageID, userID string) (*domain.Message, error)
	// SoftDelete replaces content with the tombstone and clears file and
	// referenceContent. Only the sender may delete.
	SoftDelete(ctx context.Context, messageID, requesterID string) (*domain.Message, error)
}

// ContactRepository is read-mostly; contacts are maintained out-of-band.
type ContactRepository interface {
	List(ctx context.Context) ([]*domain.Contact, error)
	GetByWaID(ctx context.Context, waID string) (*domain.Contact, error)
	Upsert(ctx context.Context, c *domain.Contact) error
}

type Repositories struct {
	Chat    ChatRepository
	Message MessageRepository
	Contact ContactRepository
}

func NewRepositories(db *pgxpool.Pool) *Repositories {
	return &Repositories{
		Chat:    &PostgresChatRepository{db: db},
		Message: &PostgresMessageRepository{db: db},
		Contact: &PostgresContactRepository{db: db},
	}
}

func NewMemoryRepositories() *Repositories {
	store := newMemoryStore()
	return &Repositories{
		Chat:    &memoryChatRepository{s: store},
		Message: &memoryMessageRepository{s: store},
		Contact: &memoryContactRepository{s: store},
	}
}

package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/naperu/wabarelay/internal/domain"
)

// memoryStore backs the in-memory repositories used when no database is
// configured. Values handed out are copies.
type memoryStore struct {
	mu       sync.RWMutex
	chats    map[string]*domain.Chat
	messages map[string]*domain.Message
	order    []string
	contacts map[string]*domain.Contact
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		chats:    make(map[string]*domain.Chat),
		messages: make(map[string]*domain.Message),
		contacts: make(map[string]*domain.Contact),
	}
}

func copyChat(c *domain.Chat) *domain.Chat {
	out := *c
	out.Participants = append([]domain.Participant{}, c.Participants...)
	return &out
}

func copyMessage(m *domain.Message) *domain.Message {
	out := *m
	out.Reactions = append([]domain.Reaction{}, m.Reactions...)
	return &out
}

type memoryChatRepository struct {
	s *memoryStore
}

// getOrCreateLocked requires s.mu held for writing.
func (r *memoryChatRepository) getOrCreateLocked(waID string) *domain.Chat {
	chat, ok := r.s.chats[waID]
	if !ok {
		chat = &domain.Chat{WaID: waID, Participants: []domain.Participant{}, Timestamp: time.Now()}
		r.s.chats[waID] = chat
	}
	return chat
}

func (r *memoryChatRepository) GetOrCreate(_ context.Context, waID string) (*domain.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyChat(r.getOrCreateLocked(waID)), nil
}

func (r *memoryChatRepository) GetByWaID(_ context.Context, waID string) (*domain.Chat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	chat, ok := r.s.chats[waID]
	if !ok {
		return nil, nil
	}
	return copyChat(chat), nil
}

func (r *memoryChatRepository) CreateGroup(_ context.Context, waID, groupName string) (*domain.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	chat := r.getOrCreateLocked(waID)
	chat.IsGroup = true
	chat.GroupName = &groupName
	return copyChat(chat), nil
}

func (r *memoryChatRepository) List(_ context.Context) ([]*domain.Chat, error) {
	r.s.mu.RLock()
	chats := make([]*domain.Chat, 0, len(r.s.chats))
	for _, c := range r.s.chats {
		chats = append(chats, copyChat(c))
	}
	r.s.mu.RUnlock()

	sort.SliceStable(chats, func(i, j int) bool {
		if chats[i].IsPinned != chats[j].IsPinned {
			return chats[i].IsPinned
		}
		if !chats[i].Timestamp.Equal(chats[j].Timestamp) {
			return chats[i].Timestamp.After(chats[j].Timestamp)
		}
		return strings.Compare(chats[i].WaID, chats[j].WaID) < 0
	})
	return chats, nil
}

func (r *memoryChatRepository) UpsertSummary(_ context.Context, waID, lastMessage string, ts time.Time, incrementUnread bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	chat := r.getOrCreateLocked(waID)
	chat.LastMessage = lastMessage
	chat.Timestamp = ts
	if incrementUnread {
		chat.UnreadCount++
	}
	return nil
}

func (r *memoryChatRepository) MarkRead(_ context.Context, waID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if chat, ok := r.s.chats[waID]; ok {
		chat.UnreadCount = 0
	}
	return nil
}

func (r *memoryChatRepository) Toggle(_ context.Context, waID string, flag ChatFlag) (bool, error) {
	if !flag.valid() {
		return false, fmt.Errorf("unknown chat flag %q: %w", flag, domain.ErrBadInput)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	chat, ok := r.s.chats[waID]
	if !ok {
		return false, fmt.Errorf("chat %s: %w", waID, domain.ErrNotFound)
	}
	var field *bool
	switch flag {
	case FlagPinned:
		field = &chat.IsPinned
	case FlagMuted:
		field = &chat.IsMuted
	case FlagBlocked:
		field = &chat.IsBlocked
	}
	*field = !*field
	return *field, nil
}

func (r *memoryChatRepository) AddParticipant(_ context.Context, groupWaID string, p domain.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	chat, ok := r.s.chats[groupWaID]
	if !ok {
		return fmt.Errorf("chat %s: %w", groupWaID, domain.ErrNotFound)
	}
	if chat.HasParticipant(p.WaID) {
		return fmt.Errorf("participant %s already in group %s: %w", p.WaID, groupWaID, domain.ErrBadInput)
	}
	chat.Participants = append(chat.Participants, p)
	return nil
}

func (r *memoryChatRepository) RemoveParticipant(_ context.Context, groupWaID, waID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	chat, ok := r.s.chats[groupWaID]
	if !ok {
		return fmt.Errorf("chat %s: %w", groupWaID, domain.ErrNotFound)
	}
	for i, p := range chat.Participants {
		if p.WaID == waID {
			chat.Participants = append(chat.Participants[:i], chat.Participants[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("participant %s in group %s: %w", waID, groupWaID, domain.ErrNotFound)
}

type memoryMessageRepository struct {
	s *memoryStore
}

func (r *memoryMessageRepository) Insert(_ context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.messages[msg.ID]; ok {
		return fmt.Errorf("insert message %s: duplicate id", msg.ID)
	}
	r.s.messages[msg.ID] = copyMessage(msg)
	r.s.order = append(r.s.order, msg.ID)
	return nil
}

func (r *memoryMessageRepository) GetByID(_ context.Context, id string) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	msg, ok := r.s.messages[id]
	if !ok {
		return nil, nil
	}
	return copyMessage(msg), nil
}

func (r *memoryMessageRepository) ListByChat(_ context.Context, chatWaID string) ([]*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	messages := []*domain.Message{}
	for _, id := range r.s.order {
		if m := r.s.messages[id]; m.ChatWaID == chatWaID {
			messages = append(messages, copyMessage(m))
		}
	}
	return messages, nil
}

// mutate runs fn against the stored message under the write lock.
func (r *memoryMessageRepository) mutate(id string, fn func(*domain.Message) error) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg, ok := r.s.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	if err := fn(msg); err != nil {
		return nil, err
	}
	return copyMessage(msg), nil
}

func withoutUser(reactions []domain.Reaction, userID string) []domain.Reaction {
	kept := reactions[:0]
	for _, rc := range reactions {
		if rc.User != userID {
			kept = append(kept, rc)
		}
	}
	return kept
}

func (r *memoryMessageRepository) ReactTo(_ context.Context, messageID, userID, emoji string) (*domain.Message, error) {
	if _, err := r.mutate(messageID, func(m *domain.Message) error {
		m.Reactions = withoutUser(m.Reactions, userID)
		return nil
	}); err != nil {
		return nil, err
	}
	return r.mutate(messageID, func(m *domain.Message) error {
		m.Reactions = append(withoutUser(m.Reactions, userID), domain.Reaction{User: userID, Emoji: emoji})
		return nil
	})
}

func (r *memoryMessageRepository) RemoveReaction(_ context.Context, messageID, userID string) (*domain.Message, error) {
	return r.mutate(messageID, func(m *domain.Message) error {
		m.Reactions = withoutUser(m.Reactions, userID)
		return nil
	})
}

func (r *memoryMessageRepository) SoftDelete(_ context.Context, messageID, requesterID string) (*domain.Message, error) {
	return r.mutate(messageID, func(m *domain.Message) error {
		if m.Sender != requesterID {
			return fmt.Errorf("message %s belongs to another sender: %w", messageID, domain.ErrForbidden)
		}
		tombstone := domain.Tombstone
		m.Content = &tombstone
		m.File = nil
		m.ReferenceContent = nil
		return nil
	})
}

type memoryContactRepository struct {
	s *memoryStore
}

func (r *memoryContactRepository) List(_ context.Context) ([]*domain.Contact, error) {
	r.s.mu.RLock()
	contacts := make([]*domain.Contact, 0, len(r.s.contacts))
	for _, c := range r.s.contacts {
		cc := *c
		contacts = append(contacts, &cc)
	}
	r.s.mu.RUnlock()
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].Name < contacts[j].Name })
	return contacts, nil
}

func (r *memoryContactRepository) GetByWaID(_ context.Context, waID string) (*domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.contacts[waID]
	if !ok {
		return nil, nil
	}
	cc := *c
	return &cc, nil
}

func (r *memoryContactRepository) Upsert(_ context.Context, c *domain.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cc := *c
	r.s.contacts[c.WaID] = &cc
	return nil
}

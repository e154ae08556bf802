package service

import (
	"context"
	"fmt"
	"time"

	"github.com/forPelevin/gomoji"
	"github.com/naperu/wabarelay/internal/domain"
	"github.com/naperu/wabarelay/internal/repository"
	"github.com/naperu/wabarelay/internal/ws"
	"github.com/rivo/uniseg"
	"go.uber.org/zap"
)

// ChatService backs the viewer API.
type ChatService struct {
	repos      *repository.Repositories
	stager     Stager
	dispatcher *Dispatcher
	hub        *ws.Hub
	logger     *zap.Logger
}

// ListChats joins chats with their contacts. Participant names missing on
// the chat are filled from the contact list.
func (s *ChatService) ListChats(ctx context.Context) ([]domain.ChatView, error) {
	chats, err := s.repos.Chat.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	contacts, err := s.repos.Contact.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	byID := make(map[string]*domain.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.WaID] = c
	}

	views := make([]domain.ChatView, 0, len(chats))
	for _, chat := range chats {
		view := domain.ChatView{Chat: *chat, Name: chat.WaID}
		if chat.IsGroup && chat.GroupName != nil {
			view.Name = *chat.GroupName
		}
		if c, ok := byID[chat.WaID]; ok {
			if !chat.IsGroup && c.Name != "" {
				view.Name = c.Name
			}
			view.ProfilePic = c.ProfilePic
			view.IsOnline = c.IsOnline
		}
		if view.Participants == nil {
			view.Participants = []domain.Participant{}
		}
		for i, p := range view.Participants {
			if c, ok := byID[p.WaID]; ok && p.Name == "" {
				view.Participants[i].Name = c.Name
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// GetMessages returns a chat's history and marks it read.
func (s *ChatService) GetMessages(ctx context.Context, chatWaID string) ([]domain.MessageView, error) {
	msgs, err := s.repos.Message.ListByChat(ctx, chatWaID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if err := s.repos.Chat.MarkRead(ctx, chatWaID); err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	views := make([]domain.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, m.View())
	}
	return views, nil
}

// SaveRequest is a viewer-composed message, optionally with a file.
type SaveRequest struct {
	ID          string
	ChatWaID    string
	SenderID    string
	Content     string
	Timestamp   time.Time
	ReferenceID string
	FileData    []byte
	FileName    string
}

// SaveMessage stages any attached file and dispatches the message.
// Blocked chats reject the write before anything is stored.
func (s *ChatService) SaveMessage(ctx context.Context, req SaveRequest) (*domain.Message, error) {
	if req.ChatWaID == "" {
		return nil, fmt.Errorf("chatId is required: %w", domain.ErrBadInput)
	}
	chat, err := s.repos.Chat.GetByWaID(ctx, req.ChatWaID)
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	if chat != nil && chat.IsBlocked {
		return nil, fmt.Errorf("chat %s is blocked: %w", req.ChatWaID, domain.ErrForbidden)
	}

	out := OutboundRequest{
		ID:          req.ID,
		ChatWaID:    req.ChatWaID,
		Sender:      req.SenderID,
		Content:     req.Content,
		ReferenceID: req.ReferenceID,
		Timestamp:   req.Timestamp,
	}
	if len(req.FileData) > 0 {
		staged, err := s.stager.Stage(ctx, req.FileData, req.FileName)
		if err != nil {
			return nil, err
		}
		out.Media = staged
	}
	return s.dispatcher.Send(ctx, out)
}

// DeleteMessage soft-deletes a message owned by requesterID.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, requesterID string) (*domain.Message, error) {
	if messageID == "" || requesterID == "" {
		return nil, fmt.Errorf("messageId and requesterId are required: %w", domain.ErrBadInput)
	}
	msg, err := s.repos.Message.SoftDelete(ctx, messageID, requesterID)
	if err != nil {
		return nil, err
	}
	s.hub.Broadcast(ws.EventMessageDeleted, msg.View())
	return msg, nil
}

// ValidEmoji reports whether s is exactly one emoji grapheme.
func ValidEmoji(s string) bool {
	return gomoji.ContainsEmoji(s) && uniseg.GraphemeClusterCount(s) == 1
}

// React sets requesterID's reaction on a message, or removes it when emoji
// is empty. Messages that came through the gateway also get the reaction
// forwarded; a failed forward is only logged.
func (s *ChatService) React(ctx context.Context, messageID, requesterID, emoji string) (*domain.Message, error) {
	if messageID == "" || requesterID == "" {
		return nil, fmt.Errorf("messageId and requesterId are required: %w", domain.ErrBadInput)
	}

	var (
		msg *domain.Message
		err error
	)
	if emoji == "" {
		msg, err = s.repos.Message.RemoveReaction(ctx, messageID, requesterID)
	} else {
		if !ValidEmoji(emoji) {
			return nil, fmt.Errorf("invalid reaction %q: %w", emoji, domain.ErrBadInput)
		}
		msg, err = s.repos.Message.ReactTo(ctx, messageID, requesterID, emoji)
	}
	if err != nil {
		return nil, err
	}

	s.hub.Broadcast(ws.EventMessageReaction, msg.View())

	if msg.WabaMessageID != nil {
		if err := s.dispatcher.SendReaction(ctx, msg.ChatWaID, *msg.WabaMessageID, emoji); err != nil {
			s.logger.Warn("failed to forward reaction",
				zap.String("id", msg.ID), zap.String("wamid", *msg.WabaMessageID), zap.Error(err))
		}
	}
	return msg, nil
}

// Toggle flips a chat flag and returns its new value.
func (s *ChatService) Toggle(ctx context.Context, waID string, flag repository.ChatFlag) (bool, error) {
	if waID == "" {
		return false, fmt.Errorf("waId is required: %w", domain.ErrBadInput)
	}
	value, err := s.repos.Chat.Toggle(ctx, waID, flag)
	if err != nil {
		return false, err
	}
	s.hub.Broadcast(ws.EventChatUpdate, map[string]interface{}{
		"waId":  waID,
		"field": string(flag),
		"value": value,
	})
	return value, nil
}

func (s *ChatService) group(ctx context.Context, groupWaID string) (*domain.Chat, error) {
	if groupWaID == "" {
		return nil, fmt.Errorf("groupWaId is required: %w", domain.ErrBadInput)
	}
	chat, err := s.repos.Chat.GetByWaID(ctx, groupWaID)
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	if chat == nil {
		return nil, fmt.Errorf("group %s: %w", groupWaID, domain.ErrNotFound)
	}
	if !chat.IsGroup {
		return nil, fmt.Errorf("chat %s is not a group: %w", groupWaID, domain.ErrBadInput)
	}
	return chat, nil
}

// AddParticipant adds a known contact to a group.
func (s *ChatService) AddParticipant(ctx context.Context, groupWaID, waID string) error {
	if _, err := s.group(ctx, groupWaID); err != nil {
		return err
	}
	contact, err := s.repos.Contact.GetByWaID(ctx, waID)
	if err != nil {
		return fmt.Errorf("load contact: %w", err)
	}
	if contact == nil {
		return fmt.Errorf("contact %s: %w", waID, domain.ErrNotFound)
	}
	if err := s.repos.Chat.AddParticipant(ctx, groupWaID, domain.Participant{WaID: waID, Name: contact.Name}); err != nil {
		return err
	}
	s.broadcastMembers(ctx, groupWaID)
	return nil
}

func (s *ChatService) RemoveParticipant(ctx context.Context, groupWaID, waID string) error {
	if _, err := s.group(ctx, groupWaID); err != nil {
		return err
	}
	if err := s.repos.Chat.RemoveParticipant(ctx, groupWaID, waID); err != nil {
		return err
	}
	s.broadcastMembers(ctx, groupWaID)
	return nil
}

func (s *ChatService) broadcastMembers(ctx context.Context, groupWaID string) {
	chat, err := s.repos.Chat.GetByWaID(ctx, groupWaID)
	if err != nil || chat == nil {
		return
	}
	s.hub.Broadcast(ws.EventChatUpdate, map[string]interface{}{
		"waId":         groupWaID,
		"participants": chat.Participants,
	})
}

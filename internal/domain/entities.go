package domain

import (
	"time"
)

// Message status values. Delivery receipts are not tracked, so a message
// never advances past StatusSentToWABA.
const (
	StatusReceived   = "received"
	StatusSent       = "sent"
	StatusSentToWABA = "sent_to_waba"
)

// Tombstone replaces the content of a soft-deleted message.
const Tombstone = "This message was deleted"

// Media categories, also the temp-area subfolder names.
const (
	CategoryImages    = "images"
	CategoryVideos    = "videos"
	CategoryDocuments = "documents"
)

// Inbound webhook message types that carry media.
const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeAudio    = "audio"
	MessageTypeVideo    = "video"
	MessageTypeDocument = "document"
)

// Contact is maintained out-of-band; the relay only reads it.
type Contact struct {
	WaID       string     `json:"waId"`
	Name       string     `json:"name"`
	ProfilePic *string    `json:"profilePic"`
	IsOnline   bool       `json:"isOnline"`
	LastSeen   *time.Time `json:"lastSeen"`
}

type Participant struct {
	WaID    string `json:"waId"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}

type Chat struct {
	WaID         string        `json:"waId"`
	IsGroup      bool          `json:"isGroup"`
	GroupName    *string       `json:"groupName"`
	Participants []Participant `json:"participants"`
	LastMessage  string        `json:"lastMessage"`
	Timestamp    time.Time     `json:"timestamp"`
	UnreadCount  int           `json:"unreadCount"`
	IsTyping     bool          `json:"isTyping"`
	IsMuted      bool          `json:"isMuted"`
	IsPinned     bool          `json:"isPinned"`
	IsBlocked    bool          `json:"isBlocked"`
}

// HasParticipant reports whether waID is already a member.
func (c *Chat) HasParticipant(waID string) bool {
	for _, p := range c.Participants {
		if p.WaID == waID {
			return true
		}
	}
	return false
}

type Reaction struct {
	User  string `json:"user"`
	Emoji string `json:"emoji"`
}

type Message struct {
	ID               string     `json:"id"`
	ChatWaID         string     `json:"chatWaId"`
	Sender           string     `json:"sender"`
	Content          *string    `json:"content"`
	Timestamp        time.Time  `json:"timestamp"`
	Status           string     `json:"status"`
	File             *string    `json:"file"`
	FileName         *string    `json:"fileName"`
	ReferenceContent *string    `json:"referenceContent"`
	Reactions        []Reaction `json:"reactions"`
	WabaMessageID    *string    `json:"wabaMessageId"`
}

// MessageView is the shape pushed to viewers and returned by the
// message list endpoint.
type MessageView struct {
	ID                string     `json:"id"`
	ChatID            string     `json:"chatId"`
	SenderID          string     `json:"senderId"`
	Content           *string    `json:"content"`
	Timestamp         int64      `json:"timestamp"`
	Status            string     `json:"status"`
	File              *string    `json:"file"`
	FileName          *string    `json:"fileName"`
	ReferencedContent *string    `json:"referencedContent"`
	Reactions         []Reaction `json:"reactions"`
	WabaMessageID     *string    `json:"wabaMessageId,omitempty"`
}

func (m *Message) View() MessageView {
	reactions := m.Reactions
	if reactions == nil {
		reactions = []Reaction{}
	}
	return MessageView{
		ID:                m.ID,
		ChatID:            m.ChatWaID,
		SenderID:          m.Sender,
		Content:           m.Content,
		Timestamp:         m.Timestamp.UnixMilli(),
		Status:            m.Status,
		File:              m.File,
		FileName:          m.FileName,
		ReferencedContent: m.ReferenceContent,
		Reactions:         reactions,
		WabaMessageID:     m.WabaMessageID,
	}
}

// ChatView is a chat joined with its contact for the chat list.
type ChatView struct {
	Chat
	Name       string  `json:"name"`
	ProfilePic *string `json:"profilePic"`
	IsOnline   bool    `json:"isOnline"`
}

// StagedFile describes a media object after the store has processed it.
type StagedFile struct {
	Digest    string `json:"digest"`
	MimeType  string `json:"mimeType"`
	Category  string `json:"category"`
	Path      string `json:"path"`
	FileName  string `json:"fileName"`
	PublicURL string `json:"publicUrl"`
	CacheHit  bool   `json:"cacheHit"`
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package gateway

import (
	"strconv"
	"time"
)

// WebhookPayload is the body of a gateway webhook delivery.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         WebhookMetadata  `json:"metadata"`
	Contacts         []WebhookContact `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
	Statuses         []StatusUpdate   `json:"statuses,omitempty"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// InboundMessage is one message inside a delivery.
type InboundMessage struct {
	From      string          `json:"from"`
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Text      *InboundText    `json:"text,omitempty"`
	Image     *InboundMedia   `json:"image,omitempty"`
	Audio     *InboundMedia   `json:"audio,omitempty"`
	Video     *InboundMedia   `json:"video,omitempty"`
	Document  *InboundMedia   `json:"document,omitempty"`
	Context   *InboundContext `json:"context,omitempty"`
}

type InboundText struct {
	Body string `json:"body"`
}

type InboundMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type InboundContext struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

// StatusUpdate is a delivery receipt. Receipts are acknowledged but not
// applied to stored messages.
type StatusUpdate struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
}

// FirstMessage returns the first message of the first change of the first
// entry. Deliveries are assumed to carry a single message; any further
// messages are ignored.
func (p *WebhookPayload) FirstMessage() (*InboundMessage, bool) {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return nil, false
	}
	msgs := p.Entry[0].Changes[0].Value.Messages
	if len(msgs) == 0 {
		return nil, false
	}
	return &msgs[0], true
}

// HasStatuses reports whether the first change carries delivery receipts.
func (p *WebhookPayload) HasStatuses() bool {
	return len(p.Entry) > 0 && len(p.Entry[0].Changes) > 0 && len(p.Entry[0].Changes[0].Value.Statuses) > 0
}

// Media returns the attachment for media message types.
func (m *InboundMessage) Media() *InboundMedia {
	switch m.Type {
	case "image":
		return m.Image
	case "audio":
		return m.Audio
	case "video":
		return m.Video
	case "document":
		return m.Document
	}
	return nil
}

// Time parses the unix-seconds timestamp, falling back to now.
func (m *InboundMessage) Time() time.Time {
	if secs, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0)
	}
	return time.Now()
}

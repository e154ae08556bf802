package gateway

import (
	"fmt"

	"github.com/naperu/wabarelay/internal/domain"
)

const messagingProduct = "whatsapp"

// OutboundMessage is the request body for the gateway messages endpoint.
// Exactly one of the type-specific fields is set.
type OutboundMessage struct {
	MessagingProduct string        `json:"messaging_product"`
	RecipientType    string        `json:"recipient_type,omitempty"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *TextBody     `json:"text,omitempty"`
	Reaction         *ReactionBody `json:"reaction,omitempty"`
	Image            *MediaBody    `json:"image,omitempty"`
	Video            *MediaBody    `json:"video,omitempty"`
	Audio            *MediaBody    `json:"audio,omitempty"`
	Document         *MediaBody    `json:"document,omitempty"`
	Context          *ReplyContext `json:"context,omitempty"`
}

type TextBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

type ReactionBody struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// MediaBody references media by public link or by a pre-uploaded id.
type MediaBody struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type ReplyContext struct {
	MessageID string `json:"message_id"`
}

func NewText(to, body string) OutboundMessage {
	return OutboundMessage{
		MessagingProduct: messagingProduct,
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &TextBody{Body: body},
	}
}

// NewReaction targets a remote message id. An empty emoji removes a
// previously sent reaction.
func NewReaction(to, remoteMessageID, emoji string) OutboundMessage {
	return OutboundMessage{
		MessagingProduct: messagingProduct,
		RecipientType:    "individual",
		To:               to,
		Type:             "reaction",
		Reaction:         &ReactionBody{MessageID: remoteMessageID, Emoji: emoji},
	}
}

// NewMedia builds an image, video, audio or document message. The
// filename is only sent for documents.
func NewMedia(to, kind string, media MediaBody) (OutboundMessage, error) {
	if media.ID == "" && media.Link == "" {
		return OutboundMessage{}, fmt.Errorf("media needs a link or an id: %w", domain.ErrBadInput)
	}
	msg := OutboundMessage{
		MessagingProduct: messagingProduct,
		RecipientType:    "individual",
		To:               to,
		Type:             kind,
	}
	if kind != domain.MessageTypeDocument {
		media.Filename = ""
	}
	switch kind {
	case domain.MessageTypeImage:
		msg.Image = &media
	case domain.MessageTypeVideo:
		msg.Video = &media
	case domain.MessageTypeAudio:
		media.Caption = ""
		msg.Audio = &media
	case domain.MessageTypeDocument:
		msg.Document = &media
	default:
		return OutboundMessage{}, fmt.Errorf("unsupported media kind %q: %w", kind, domain.ErrBadInput)
	}
	return msg, nil
}

// ReplyTo attaches a reply context. An empty id leaves msg unchanged.
func (m OutboundMessage) ReplyTo(remoteMessageID string) OutboundMessage {
	if remoteMessageID != "" {
		m.Context = &ReplyContext{MessageID: remoteMessageID}
	}
	return m
}

// MediaKind picks the outbound message type for a staged file.
func MediaKind(staged *domain.StagedFile) string {
	switch staged.Category {
	case domain.CategoryImages:
		if staged.MimeType == "image/jpeg" || staged.MimeType == "image/png" {
			return domain.MessageTypeImage
		}
	case domain.CategoryVideos:
		return domain.MessageTypeVideo
	}
	if staged.MimeType == "audio/ogg" {
		return domain.MessageTypeAudio
	}
	return domain.MessageTypeDocument
}

package service

import (
	"context"
	"fmt"
	"mime"

	"github.com/google/uuid"
	"github.com/naperu/wabarelay/internal/domain"
	"github.com/naperu/wabarelay/internal/gateway"
	"github.com/naperu/wabarelay/internal/media"
	"github.com/naperu/wabarelay/internal/repository"
	"github.com/naperu/wabarelay/internal/ws"
	"go.uber.org/zap"
)

// InboundProcessor turns webhook deliveries into stored messages.
type InboundProcessor struct {
	repos      *repository.Repositories
	stager     Stager
	gw         Gateway
	hub        *ws.Hub
	guard      DeliveryGuard
	dispatcher *Dispatcher
	opts       Options
	logger     *zap.Logger
}

// HandleWebhook processes a delivery and never fails. The gateway retries
// anything that is not acknowledged, so errors are logged and dropped.
func (p *InboundProcessor) HandleWebhook(ctx context.Context, payload *gateway.WebhookPayload) {
	if _, err := p.Process(ctx, payload); err != nil {
		p.logger.Warn("webhook delivery dropped", zap.Error(err))
	}
}

// Process handles the first message of a delivery. It returns nil, nil
// for deliveries with nothing to store: receipts, duplicates and empty
// payloads.
func (p *InboundProcessor) Process(ctx context.Context, payload *gateway.WebhookPayload) (*domain.Message, error) {
	in, ok := payload.FirstMessage()
	if !ok {
		if payload.HasStatuses() {
			p.logger.Debug("status update acknowledged")
		}
		return nil, nil
	}
	log := p.logger.With(zap.String("wamid", in.ID), zap.String("from", in.From), zap.String("type", in.Type))

	if in.From == "" {
		return nil, fmt.Errorf("message %s has no sender: %w", in.ID, domain.ErrBadInput)
	}

	if p.guard != nil && in.ID != "" {
		claimed, err := p.guard.Claim(ctx, in.ID, p.opts.DeliveryTTL)
		if err != nil {
			log.Warn("delivery guard unavailable", zap.Error(err))
		} else if !claimed {
			log.Info("duplicate delivery skipped")
			return nil, nil
		}
	}

	msg, err := p.store(ctx, in, log)
	if err != nil {
		if p.guard != nil && in.ID != "" {
			if rerr := p.guard.Release(ctx, in.ID); rerr != nil {
				log.Debug("failed to release delivery claim", zap.Error(rerr))
			}
		}
		return nil, err
	}

	p.hub.Broadcast(ws.EventNewMessage, msg.View())
	log.Info("inbound message stored", zap.String("id", msg.ID))

	if p.opts.AutoReplyText != "" {
		if _, err := p.dispatcher.Send(ctx, OutboundRequest{ChatWaID: in.From, Content: p.opts.AutoReplyText}); err != nil {
			log.Warn("auto-reply failed", zap.Error(err))
		}
	}
	return msg, nil
}

func (p *InboundProcessor) store(ctx context.Context, in *gateway.InboundMessage, log *zap.Logger) (*domain.Message, error) {
	msg := &domain.Message{
		ID:            uuid.NewString(),
		ChatWaID:      in.From,
		Sender:        in.From,
		Timestamp:     in.Time(),
		Status:        domain.StatusReceived,
		WabaMessageID: domain.StringPtr(in.ID),
	}

	var att *gateway.InboundMedia
	switch in.Type {
	case domain.MessageTypeText:
		if in.Text == nil {
			return nil, fmt.Errorf("text message without body: %w", domain.ErrBadInput)
		}
		msg.Content = domain.StringPtr(in.Text.Body)

	case domain.MessageTypeImage, domain.MessageTypeAudio, domain.MessageTypeVideo, domain.MessageTypeDocument:
		att = in.Media()
		if att == nil || att.ID == "" {
			return nil, fmt.Errorf("%s message without media id: %w", in.Type, domain.ErrBadInput)
		}

	default:
		log.Warn("unsupported message type")
		return nil, fmt.Errorf("unsupported message type %q: %w", in.Type, domain.ErrBadInput)
	}

	chat, err := p.repos.Chat.GetOrCreate(ctx, in.From)
	if err != nil {
		return nil, fmt.Errorf("resolve chat: %w", err)
	}
	if chat.IsBlocked {
		log.Info("message from blocked chat ignored")
		return nil, fmt.Errorf("chat %s is blocked: %w", in.From, domain.ErrForbidden)
	}

	// Media is only fetched once the chat is known to accept it.
	if att != nil {
		staged, err := p.fetch(ctx, in.Type, att)
		if err != nil {
			return nil, err
		}
		msg.Content = domain.StringPtr(preview("", in.Type))
		msg.File = domain.StringPtr(staged.PublicURL)
		msg.FileName = domain.StringPtr(att.Filename)
	}

	if err := p.repos.Message.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	summary := in.Type
	if msg.Content != nil {
		summary = *msg.Content
	}
	if err := p.repos.Chat.UpsertSummary(ctx, in.From, summary, msg.Timestamp, true); err != nil {
		return nil, fmt.Errorf("update chat summary: %w", err)
	}
	return msg, nil
}

// fetch downloads an attachment from the gateway and stages it.
func (p *InboundProcessor) fetch(ctx context.Context, kind string, att *gateway.InboundMedia) (*domain.StagedFile, error) {
	data, contentType, err := p.gw.FetchMedia(ctx, att.ID)
	if err != nil {
		return nil, fmt.Errorf("download media %s: %w", att.ID, err)
	}

	name := att.Filename
	if name == "" {
		raw := att.MimeType
		if raw == "" {
			raw = contentType
		}
		mt, _, _ := mime.ParseMediaType(raw)
		name = kind + media.Extension("", mt)
	}
	staged, err := p.stager.Stage(ctx, data, name)
	if err != nil {
		return nil, fmt.Errorf("stage media %s: %w", att.ID, err)
	}
	return staged, nil
}

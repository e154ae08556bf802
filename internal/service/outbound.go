package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/naperu/wabarelay/internal/domain"
	"github.com/naperu/wabarelay/internal/gateway"
	"github.com/naperu/wabarelay/internal/repository"
	"github.com/naperu/wabarelay/internal/ws"
	"go.uber.org/zap"
)

// OutboundRequest describes a message to send to a peer.
type OutboundRequest struct {
	// ID is generated when empty.
	ID       string
	ChatWaID string
	// Sender defaults to the configured self id.
	Sender  string
	Content string
	Media   *domain.StagedFile
	// ReferenceID is the local id of the message being replied to.
	ReferenceID string
	Timestamp   time.Time
}

// Dispatcher sends messages through the gateway and records them.
type Dispatcher struct {
	repos  *repository.Repositories
	gw     Gateway
	hub    *ws.Hub
	opts   Options
	logger *zap.Logger
}

// Send delivers req and stores the resulting self-authored message. When
// the gateway rejects the message nothing is stored and the error wraps
// domain.ErrUpstream. Without gateway credentials the message is stored
// with status sent and never leaves the process.
func (d *Dispatcher) Send(ctx context.Context, req OutboundRequest) (*domain.Message, error) {
	if req.ChatWaID == "" {
		return nil, fmt.Errorf("chat id is required: %w", domain.ErrBadInput)
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" && req.Media == nil {
		return nil, fmt.Errorf("content or file is required: %w", domain.ErrBadInput)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Sender == "" {
		req.Sender = d.opts.SelfID
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	log := d.logger.With(zap.String("id", req.ID), zap.String("to", req.ChatWaID))

	msg := &domain.Message{
		ID:               req.ID,
		ChatWaID:         req.ChatWaID,
		Sender:           req.Sender,
		Content:          domain.StringPtr(req.Content),
		Timestamp:        req.Timestamp,
		Status:           domain.StatusSent,
		ReferenceContent: domain.StringPtr(req.ReferenceID),
	}
	kind := domain.MessageTypeText
	if req.Media != nil {
		kind = gateway.MediaKind(req.Media)
		msg.File = domain.StringPtr(req.Media.PublicURL)
		msg.FileName = domain.StringPtr(req.Media.FileName)
	}

	if d.gw.Configured() {
		payload, err := d.build(ctx, req, kind)
		if err != nil {
			return nil, err
		}
		remoteID, err := d.gw.Send(ctx, payload)
		if err != nil {
			log.Warn("gateway rejected message", zap.Error(err))
			return nil, err
		}
		msg.Status = domain.StatusSentToWABA
		msg.WabaMessageID = domain.StringPtr(remoteID)
	} else {
		log.Debug("gateway not configured, storing without sending")
	}

	if _, err := d.repos.Chat.GetOrCreate(ctx, req.ChatWaID); err != nil {
		return nil, fmt.Errorf("resolve chat: %w", err)
	}
	if err := d.repos.Message.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	if err := d.repos.Chat.UpsertSummary(ctx, req.ChatWaID, preview(req.Content, kind), msg.Timestamp, false); err != nil {
		return nil, fmt.Errorf("update chat summary: %w", err)
	}

	d.hub.Broadcast(ws.EventMessageSent, msg.View())
	log.Info("message sent", zap.String("status", msg.Status), zap.String("kind", kind))
	return msg, nil
}

func (d *Dispatcher) build(ctx context.Context, req OutboundRequest, kind string) (gateway.OutboundMessage, error) {
	var payload gateway.OutboundMessage
	if req.Media == nil {
		payload = gateway.NewText(req.ChatWaID, req.Content)
	} else {
		body := gateway.MediaBody{
			Link:     req.Media.PublicURL,
			Filename: req.Media.FileName,
			Caption:  req.Content,
		}
		if d.opts.UploadMedia && d.gw.CanUpload() {
			id, err := d.gw.UploadMedia(ctx, req.Media.Path, req.Media.MimeType)
			if err != nil {
				return payload, fmt.Errorf("upload media: %w", err)
			}
			body.ID, body.Link = id, ""
		}
		var err error
		if payload, err = gateway.NewMedia(req.ChatWaID, kind, body); err != nil {
			return payload, err
		}
	}

	if req.ReferenceID != "" {
		ref, err := d.repos.Message.GetByID(ctx, req.ReferenceID)
		if err != nil {
			return payload, fmt.Errorf("load replied message: %w", err)
		}
		if ref != nil && ref.WabaMessageID != nil {
			payload = payload.ReplyTo(*ref.WabaMessageID)
		}
	}
	return payload, nil
}

// SendReaction forwards a reaction on a remote message. An empty emoji
// removes it.
func (d *Dispatcher) SendReaction(ctx context.Context, to, remoteMessageID, emoji string) error {
	if !d.gw.Configured() {
		return nil
	}
	if _, err := d.gw.Send(ctx, gateway.NewReaction(to, remoteMessageID, emoji)); err != nil {
		return err
	}
	return nil
}

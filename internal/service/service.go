package service

import (
	"context"
	"time"

	"github.com/naperu/wabarelay/internal/domain"
	"github.com/naperu/wabarelay/internal/gateway"
	"github.com/naperu/wabarelay/internal/repository"
	"github.com/naperu/wabarelay/internal/ws"
	"go.uber.org/zap"
)

// Gateway is the part of the gateway client the services use.
type Gateway interface {
	// Configured reports whether outbound sends reach a real gateway.
	Configured() bool
	CanUpload() bool
	Send(ctx context.Context, msg gateway.OutboundMessage) (string, error)
	FetchMedia(ctx context.Context, mediaID string) ([]byte, string, error)
	UploadMedia(ctx context.Context, filePath, mimeType string) (string, error)
}

// Stager stores media bytes under a content-addressed name.
type Stager interface {
	Stage(ctx context.Context, data []byte, originalName string) (*domain.StagedFile, error)
}

// DeliveryGuard remembers webhook message ids that were already handled.
type DeliveryGuard interface {
	Claim(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, deliveryID string) error
}

type Options struct {
	// SelfID is the sender recorded on self-authored messages.
	SelfID string
	// AutoReplyText is sent after every inbound message. Empty disables it.
	AutoReplyText string
	// UploadMedia sends media by pre-uploaded id instead of public link.
	UploadMedia bool
	// DeliveryTTL bounds how long a handled webhook id is remembered.
	DeliveryTTL time.Duration
}

type Services struct {
	Inbound  *InboundProcessor
	Outbound *Dispatcher
	Chat     *ChatService
	Contact  *ContactService
}

// NewServices wires the services together. guard may be nil.
func NewServices(repos *repository.Repositories, stager Stager, gw Gateway, hub *ws.Hub, guard DeliveryGuard, opts Options, logger *zap.Logger) *Services {
	if opts.SelfID == "" {
		opts.SelfID = "me"
	}
	if opts.DeliveryTTL <= 0 {
		opts.DeliveryTTL = 24 * time.Hour
	}

	dispatcher := &Dispatcher{
		repos:  repos,
		gw:     gw,
		hub:    hub,
		opts:   opts,
		logger: logger.Named("outbound"),
	}
	return &Services{
		Inbound: &InboundProcessor{
			repos:      repos,
			stager:     stager,
			gw:         gw,
			hub:        hub,
			guard:      guard,
			dispatcher: dispatcher,
			opts:       opts,
			logger:     logger.Named("inbound"),
		},
		Outbound: dispatcher,
		Chat: &ChatService{
			repos:      repos,
			stager:     stager,
			dispatcher: dispatcher,
			hub:        hub,
			logger:     logger.Named("chat"),
		},
		Contact: &ContactService{repos: repos},
	}
}

// ContactService exposes the out-of-band contact list.
type ContactService struct {
	repos *repository.Repositories
}

func (s *ContactService) List(ctx context.Context) ([]*domain.Contact, error) {
	return s.repos.Contact.List(ctx)
}

// preview is the chat list text for a message.
func preview(content, kind string) string {
	if content != "" {
		return content
	}
	if kind == "" {
		kind = domain.MessageTypeDocument
	}
	return "[" + kind + "]"
}

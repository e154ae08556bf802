package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/naperu/wabarelay/internal/domain"
	"github.com/naperu/wabarelay/internal/gateway"
	"github.com/naperu/wabarelay/internal/media"
	"github.com/naperu/wabarelay/internal/repository"
	"github.com/naperu/wabarelay/internal/service"
	"go.uber.org/zap"
)

// --- Webhook ---

// handleVerifyWebhook answers a token mismatch with a plain 200 body; the
// gateway only checks for the echoed challenge.
func (s *Server) handleVerifyWebhook(c *fiber.Ctx) error {
	token := c.Query("hub.verify_token")
	if token == "" || token != s.cfg.VerifyToken {
		s.logger.Warn("webhook verification rejected")
		return c.SendString("Invalid verify token")
	}
	return c.SendString(c.Query("hub.challenge"))
}

// handleWebhook always acknowledges; processing errors are logged by the
// inbound processor.
func (s *Server) handleWebhook(c *fiber.Ctx) error {
	var payload gateway.WebhookPayload
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		s.logger.Warn("unreadable webhook body", zap.Error(err))
	} else {
		s.services.Inbound.HandleWebhook(c.UserContext(), &payload)
	}
	return c.JSON(fiber.Map{"status": "received"})
}

// --- Chats ---

func (s *Server) handleGetChats(c *fiber.Ctx) error {
	chats, err := s.services.Chat.ListChats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "chats": chats})
}

func (s *Server) handleGetContacts(c *fiber.Ctx) error {
	contacts, err := s.services.Contact.List(c.UserContext())
	if err != nil {
		return err
	}
	if contacts == nil {
		contacts = make([]*domain.Contact, 0)
	}
	return c.JSON(fiber.Map{"success": true, "contacts": contacts})
}

var toggleFlags = map[string]repository.ChatFlag{
	"isPinned":  repository.FlagPinned,
	"isMuted":   repository.FlagMuted,
	"isBlocked": repository.FlagBlocked,
}

// handleToggle flips the chat flag reported under key.
func (s *Server) handleToggle(key string) fiber.Handler {
	flag := toggleFlags[key]
	return func(c *fiber.Ctx) error {
		var req struct {
			WaID string `json:"waId"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fmt.Errorf("invalid request: %w", domain.ErrBadInput)
		}
		value, err := s.services.Chat.Toggle(c.UserContext(), req.WaID, flag)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "waId": req.WaID, key: value})
	}
}

func (s *Server) handleAddParticipant(c *fiber.Ctx) error {
	if err := s.services.Chat.AddParticipant(c.UserContext(), c.Query("groupWaId"), c.Params("waId")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleRemoveParticipant(c *fiber.Ctx) error {
	if err := s.services.Chat.RemoveParticipant(c.UserContext(), c.Query("groupWaId"), c.Params("waId")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// --- Messages ---

func (s *Server) handleGetMessages(c *fiber.Ctx) error {
	views, err := s.services.Chat.GetMessages(c.UserContext(), c.Params("chatId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "messages": views})
}

// handleSaveMessage accepts a multipart form with an optional file.
func (s *Server) handleSaveMessage(c *fiber.Ctx) error {
	req := service.SaveRequest{
		ID:          c.FormValue("id"),
		ChatWaID:    c.FormValue("chatId"),
		SenderID:    c.FormValue("senderId"),
		Content:     c.FormValue("content"),
		ReferenceID: c.FormValue("referenceId"),
		Timestamp:   parseMillis(c.FormValue("timestamp")),
	}

	if file, err := c.FormFile("file"); err == nil {
		src, err := file.Open()
		if err != nil {
			return fmt.Errorf("read upload: %w", err)
		}
		defer src.Close()
		data, err := io.ReadAll(io.LimitReader(src, int64(s.cfg.MaxUploadSize)+1))
		if err != nil {
			return fmt.Errorf("read upload: %w", err)
		}
		if len(data) > s.cfg.MaxUploadSize {
			return fiber.ErrRequestEntityTooLarge
		}
		req.FileData = data
		req.FileName = file.Filename
	}

	msg, err := s.services.Chat.SaveMessage(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "message": msg.View()})
}

// parseMillis reads a unix-milliseconds timestamp, falling back to now.
func parseMillis(v string) time.Time {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms)
	}
	return time.Now()
}

func (s *Server) handleDeleteMessage(c *fiber.Ctx) error {
	var req struct {
		MessageID   string `json:"messageId"`
		RequesterID string `json:"requesterId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("invalid request: %w", domain.ErrBadInput)
	}
	msg, err := s.services.Chat.DeleteMessage(c.UserContext(), req.MessageID, req.RequesterID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": msg.View()})
}

func (s *Server) handleReact(c *fiber.Ctx) error {
	var req struct {
		MessageID   string `json:"messageId"`
		RequesterID string `json:"requesterId"`
		Emoji       string `json:"emoji"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("invalid request: %w", domain.ErrBadInput)
	}
	msg, err := s.services.Chat.React(c.UserContext(), req.MessageID, req.RequesterID, req.Emoji)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": msg.View()})
}

// --- Live stream ---

// handleEvents streams hub events as server-sent events until the viewer
// goes away or the server shuts down.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, heartbeat := s.ctx, s.cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		if err := s.hub.Stream(ctx, w, heartbeat); err != nil {
			s.logger.Debug("viewer stream closed", zap.Error(err))
		}
	})
	return nil
}

// --- Files ---

// handleDownload serves a stored file as an attachment, looking in the
// local roots first and then in the archive.
func (s *Server) handleDownload(c *fiber.Ctx) error {
	name := c.Params("name")
	path, err := media.FindFile(media.RetrievalRoots(s.files.Root()), name)
	if err == nil {
		return c.Download(path, name)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	rc, size, contentType, err := s.files.OpenArchived(c.UserContext(), name)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = media.ContentType(name)
	}
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, contentType)
	return c.SendStream(rc, int(size))
}

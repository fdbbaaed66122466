package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/query-triage/internal/api/dto"
	"github.com/spec-kit/query-triage/internal/domain"
	"github.com/spec-kit/query-triage/internal/service"
	apperrors "github.com/spec-kit/query-triage/pkg/util/errorutil"
)

// WebhooksHandler adapts channel payloads into incoming messages.
type WebhooksHandler struct {
	lifecycle *service.LifecycleService
	logger    *zap.Logger
}

// NewWebhooksHandler constructs handler.
func NewWebhooksHandler(lifecycle *service.LifecycleService, logger *zap.Logger) *WebhooksHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhooksHandler{lifecycle: lifecycle, logger: logger}
}

// Email POST /webhooks/email.
func (h *WebhooksHandler) Email(c *fiber.Ctx) error {
	var req dto.EmailWebhook
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "No Subject"
	}
	name := strings.TrimSpace(req.FromName)
	if name == "" {
		name = req.From
	}
	return h.create(c, "email", domain.IncomingMessage{
		Subject:       subject,
		Body:          req.Body,
		Channel:       domain.ChannelEmail,
		SenderName:    name,
		SenderContact: req.From,
	})
}

// Twitter POST /webhooks/twitter.
func (h *WebhooksHandler) Twitter(c *fiber.Ctx) error {
	var req dto.TwitterWebhook
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return h.create(c, "twitter", domain.IncomingMessage{
		Subject:       "Twitter: @" + req.UserScreenName,
		Body:          req.TweetText,
		Channel:       domain.ChannelSocial,
		SenderName:    req.UserName,
		SenderContact: req.UserScreenName + "@twitter.com",
		Tags:          tagged("twitter", "tweet", req.TweetID),
	})
}

// Facebook POST /webhooks/facebook.
func (h *WebhooksHandler) Facebook(c *fiber.Ctx) error {
	var req dto.FacebookWebhook
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return h.create(c, "facebook", domain.IncomingMessage{
		Subject:       "Facebook: " + req.SenderName,
		Body:          req.MessageText,
		Channel:       domain.ChannelSocial,
		SenderName:    req.SenderName,
		SenderContact: req.SenderID + "@facebook.com",
		Tags:          tagged("facebook", "page", req.PageID),
	})
}

// Chat POST /webhooks/chat.
func (h *WebhooksHandler) Chat(c *fiber.Ctx) error {
	var req dto.ChatWebhook
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	body := req.Message
	if strings.TrimSpace(req.PageURL) != "" {
		body = fmt.Sprintf("%s\n\nPage: %s", req.Message, req.PageURL)
	}
	return h.create(c, "chat", domain.IncomingMessage{
		Subject:       "Chat: " + req.Name,
		Body:          body,
		Channel:       domain.ChannelChat,
		SenderName:    req.Name,
		SenderContact: req.Email,
		Tags:          tagged("chat", "session", req.SessionID),
	})
}

// Generic POST /webhooks/generic. Unknown sources file under community.
func (h *WebhooksHandler) Generic(c *fiber.Ctx) error {
	var req dto.GenericWebhook
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	channel := domain.Channel(strings.ToLower(strings.TrimSpace(req.Source)))
	if !channel.Valid() {
		channel = domain.ChannelCommunity
	}
	contact := req.CustomerEmail
	if strings.TrimSpace(contact) == "" {
		contact = req.CustomerPhone
	}
	return h.create(c, "generic", domain.IncomingMessage{
		Subject:       req.Subject,
		Body:          req.Message,
		Channel:       channel,
		SenderName:    req.CustomerName,
		SenderContact: contact,
	})
}

// Test GET /webhooks/test.
func (h *WebhooksHandler) Test(c *fiber.Ctx) error {
	return c.JSON(dto.WebhookInfoResponse{
		Message:   "Webhook endpoint is working!",
		Timestamp: time.Now().UTC(),
		AvailableWebhooks: []string{
			"POST /webhooks/email",
			"POST /webhooks/twitter",
			"POST /webhooks/facebook",
			"POST /webhooks/chat",
			"POST /webhooks/generic",
		},
	})
}

func (h *WebhooksHandler) create(c *fiber.Ctx, source string, msg domain.IncomingMessage) error {
	query, err := h.lifecycle.CreateQuery(c.UserContext(), msg)
	if err != nil {
		return err
	}
	h.logger.Info("webhook query received", zap.String("source", source), zap.String("query_id", query.ID))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Query created",
		"data":    query,
	})
}

// tagged returns the source tag plus "<kind>:<id>" when id is present.
func tagged(source, kind, id string) []string {
	tags := []string{source}
	if id = strings.TrimSpace(id); id != "" {
		tags = append(tags, kind+":"+id)
	}
	return tags
}

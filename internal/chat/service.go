package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingRegistry   = errors.New("connection registry is required")

	// ErrConversationNotFound indicates a message referenced a conversation
	// that does not exist.
	ErrConversationNotFound = errors.New("chat: conversation not found")
	// ErrEmptyContent indicates a message with no content.
	ErrEmptyContent = errors.New("chat: message content required")
	// ErrSameParticipant indicates a conversation between a user and themselves.
	ErrSameParticipant = errors.New("chat: conversation requires two distinct users")
)

// ServiceError wraps a chat failure with a dotted operation code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation code for the failure.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew          = "chat.service.new"
	opResolveConversation = "chat.resolve_conversation"
	opSendMessage         = "chat.send_message"
	opListMessages        = "chat.list_messages"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// IDProvider issues identifiers for conversations and messages.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the chat service.
type ServiceConfig struct {
	Database   *gorm.DB
	Registry   *Registry
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service persists conversations and messages and fans persisted messages
// out through the connection registry. Durability always precedes fan-out.
type Service struct {
	db         *gorm.DB
	registry   *Registry
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Registry == nil {
		return nil, newServiceError(opServiceNew, "missing_registry", errMissingRegistry)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		registry:   cfg.Registry,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Registry exposes the connection registry for the socket handlers.
func (s *Service) Registry() *Registry {
	return s.registry
}

// ResolveConversation returns the conversation for the user pair and listing,
// creating it when absent. The pair is order-normalized first so inverse
// lookups land on the same row.
func (s *Service) ResolveConversation(ctx context.Context, userA, userB, listingID string) (Conversation, error) {
	if userA == userB {
		return Conversation{}, newServiceError(opResolveConversation, "same_participant", ErrSameParticipant)
	}
	user1, user2 := NormalizePair(userA, userB)

	var conversation Conversation
	err := s.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ? AND listing_id = ?", user1, user2, listingID).
		Take(&conversation).Error
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Conversation{}, newServiceError(opResolveConversation, "query_failed", err)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Conversation{}, newServiceError(opResolveConversation, "id_generation_failed", err)
	}
	conversation = Conversation{
		ID:        id,
		User1ID:   user1,
		User2ID:   user2,
		ListingID: listingID,
	}
	if err := s.db.WithContext(ctx).Create(&conversation).Error; err != nil {
		return Conversation{}, newServiceError(opResolveConversation, "insert_failed", err)
	}
	return conversation, nil
}

// MessagePayload is the JSON document fanned out to room members.
type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sent_at"`
	Read           bool      `json:"read"`
}

// NotificationPayload is the out-of-band document sent to the receiver's
// notification connection.
type NotificationPayload struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	SenderID       string `json:"sender_id"`
}

// SendMessage persists one message and then fans it out: first a broadcast
// to the conversation room, then an out-of-band notification to the
// receiver. When persistence fails neither happens.
//
// Broadcast order equals persistence order only while one writer is active
// per conversation; concurrent senders to the same room may interleave.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID, receiverID, content string) (Message, error) {
	if content == "" {
		return Message{}, newServiceError(opSendMessage, "empty_content", ErrEmptyContent)
	}

	var conversation Conversation
	err := s.db.WithContext(ctx).Where("id = ?", conversationID).Take(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Message{}, newServiceError(opSendMessage, "conversation_not_found", ErrConversationNotFound)
	}
	if err != nil {
		return Message{}, newServiceError(opSendMessage, "conversation_select_failed", err)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Message{}, newServiceError(opSendMessage, "id_generation_failed", err)
	}
	message := Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		SentAt:         s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		s.logger.Error("message persistence failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return Message{}, newServiceError(opSendMessage, "insert_failed", err)
	}

	payload := MessagePayload{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		ReceiverID:     message.ReceiverID,
		Content:        message.Content,
		SentAt:         message.SentAt,
		Read:           message.Read,
	}
	s.registry.Broadcast(conversationID, payload)
	s.registry.Notify(receiverID, NotificationPayload{
		Type:           "message",
		ConversationID: message.ConversationID,
		MessageID:      message.ID,
		SenderID:       message.SenderID,
	})

	return message, nil
}

// ListMessages returns a conversation's messages, oldest first.
func (s *Service) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var messages []Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sent_at ASC").
		Find(&messages).Error; err != nil {
		return nil, newServiceError(opListMessages, "query_failed", err)
	}
	return messages, nil
}

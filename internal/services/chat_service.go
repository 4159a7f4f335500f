package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/broker"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/database"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/models"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/presence"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// ClientSession is what the chat service needs from a connected session:
// targeted delivery plus a hook to record which user the session speaks
// for, so disconnect cleanup can release presence exactly once.
type ClientSession interface {
	broker.Subscriber
	SetPresence(username string, online bool)
}

type handlerFunc func(ctx context.Context, sess ClientSession, scope string, body json.RawMessage) error

// ChatService orchestrates inbound events: validate, apply the side
// effect (persist or presence change), then publish to the router. The
// destination-to-handler table is built once at construction and
// consulted on every Dispatch.
type ChatService struct {
	store    database.MessageStore
	tracker  *presence.Tracker
	router   *broker.Router
	validate *validator.Validate
	now      func() time.Time
	handlers map[string]handlerFunc
}

func NewChatService(store database.MessageStore, tracker *presence.Tracker, router *broker.Router) *ChatService {
	s := &ChatService{
		store:    store,
		tracker:  tracker,
		router:   router,
		validate: validator.New(),
		now:      time.Now,
	}
	s.handlers = map[string]handlerFunc{
		models.DestMessage: s.handleDirectMessage,
		models.DestChat:    s.handleGroupChat,
		models.DestTyping:  s.handleTyping,
		models.DestOnline:  s.handleOnline,
		models.DestOffline: s.handleOffline,
	}
	return s
}

// Dispatch routes one inbound event to its handler. The destination is
// "kind" or "kind/scope", e.g. "chat/garden" or "online".
func (s *ChatService) Dispatch(ctx context.Context, sess ClientSession, destination string, body json.RawMessage) error {
	kind, scope := splitDestination(destination)

	handler, ok := s.handlers[kind]
	if !ok {
		return &ValidationError{Reason: "unknown destination " + destination}
	}
	return handler(ctx, sess, scope, body)
}

// Disconnect releases presence state for a session that closed while its
// user was still marked online, broadcasting the shrunk set. Sessions
// that announced offline explicitly never get here.
func (s *ChatService) Disconnect(ctx context.Context, username string) {
	users := s.tracker.MarkOffline(username)
	s.publishJSON(models.TopicPresence, users)
	logger.Info("User %s went offline on disconnect, %d still online", username, len(users))
}

// SaveDirectMessage persists a point-to-point message with a server
// timestamp. Direct messages are not broadcast; recipients pick them up
// through the query API.
func (s *ChatService) SaveDirectMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	if err := s.validate.Struct(msg); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	msg.Timestamp = s.now()
	stored, err := s.store.Append(ctx, msg)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	return stored, nil
}

func (s *ChatService) handleDirectMessage(ctx context.Context, sess ClientSession, scope string, body json.RawMessage) error {
	msg := &models.ChatMessage{}
	if err := json.Unmarshal(body, msg); err != nil {
		return &ValidationError{Reason: "malformed message body"}
	}
	_, err := s.SaveDirectMessage(ctx, msg)
	return err
}

func (s *ChatService) handleGroupChat(ctx context.Context, sess ClientSession, group string, body json.RawMessage) error {
	if group == "" {
		return &ValidationError{Reason: "group must not be empty"}
	}

	msg := &models.ChatMessage{}
	if err := json.Unmarshal(body, msg); err != nil {
		return &ValidationError{Reason: "malformed message body"}
	}
	if err := s.validate.Struct(msg); err != nil {
		return &ValidationError{Reason: err.Error()}
	}

	msg.Group = group
	msg.Timestamp = s.now()

	stored, err := s.store.Append(ctx, msg)
	if err != nil {
		// No partial fan-out: a message that was not recorded is not
		// broadcast.
		return &PersistenceError{Err: err}
	}

	s.publishJSON(models.ChatTopic(group), stored)
	return nil
}

func (s *ChatService) handleTyping(ctx context.Context, sess ClientSession, group string, body json.RawMessage) error {
	if group == "" {
		return &ValidationError{Reason: "group must not be empty"}
	}

	payload := &models.TypingPayload{}
	if err := json.Unmarshal(body, payload); err != nil {
		return &ValidationError{Reason: "malformed typing body"}
	}
	if err := s.validate.Struct(payload); err != nil {
		return &ValidationError{Reason: err.Error()}
	}

	s.publishJSON(models.TypingTopic(group), payload)
	return nil
}

func (s *ChatService) handleOnline(ctx context.Context, sess ClientSession, scope string, body json.RawMessage) error {
	payload := &models.PresencePayload{}
	if err := json.Unmarshal(body, payload); err != nil {
		return &ValidationError{Reason: "malformed presence body"}
	}
	if err := s.validate.Struct(payload); err != nil {
		return &ValidationError{Reason: err.Error()}
	}

	users := s.tracker.MarkOnline(payload.Username)
	s.publishJSON(models.TopicPresence, users)
	sess.SetPresence(payload.Username, true)
	logger.Info("User %s is online, %d total", payload.Username, len(users))
	return nil
}

func (s *ChatService) handleOffline(ctx context.Context, sess ClientSession, scope string, body json.RawMessage) error {
	payload := &models.PresencePayload{}
	if err := json.Unmarshal(body, payload); err != nil {
		return &ValidationError{Reason: "malformed presence body"}
	}
	if err := s.validate.Struct(payload); err != nil {
		return &ValidationError{Reason: err.Error()}
	}

	users := s.tracker.MarkOffline(payload.Username)
	s.publishJSON(models.TopicPresence, users)
	sess.SetPresence(payload.Username, false)
	logger.Info("User %s is offline, %d remaining", payload.Username, len(users))
	return nil
}

func (s *ChatService) publishJSON(topic string, body interface{}) {
	raw, err := json.Marshal(body)
	if err != nil {
		logger.Error("Error marshaling payload for topic %s: %v", topic, err)
		return
	}

	frame, err := json.Marshal(models.ServerFrame{Topic: topic, Body: raw})
	if err != nil {
		logger.Error("Error marshaling frame for topic %s: %v", topic, err)
		return
	}

	s.router.Publish(topic, frame)
}

func splitDestination(destination string) (kind, scope string) {
	if i := strings.IndexByte(destination, '/'); i >= 0 {
		return destination[:i], destination[i+1:]
	}
	return destination, ""
}

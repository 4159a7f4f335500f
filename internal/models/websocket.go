package models

import "encoding/json"

// Client frame actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionSend        = "send"
)

// Inbound destination kinds (request side). Chat and typing carry a
// group scope after a slash: "chat/{group}", "typing/{group}".
const (
	DestChat    = "chat"
	DestTyping  = "typing"
	DestMessage = "message" // direct message, persisted only
	DestOnline  = "online"
	DestOffline = "offline"
)

// Broadcast topics. Presence updates for both online and offline events
// go to the single global "presence" topic.
const TopicPresence = "presence"

func ChatTopic(group string) string {
	return "chat:" + group
}

func TypingTopic(group string) string {
	return "typing:" + group
}

// ClientFrame is what a connected client sends over the socket: either a
// subscription change or an event addressed to an inbound destination.
type ClientFrame struct {
	Action      string          `json:"action"`
	Topic       string          `json:"topic,omitempty"`
	Destination string          `json:"destination,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// ServerFrame is what the server pushes to subscribers. Error replies to
// a single session use the pseudo-topic "error".
type ServerFrame struct {
	Topic string          `json:"topic"`
	Body  json.RawMessage `json:"body"`
}

type TypingPayload struct {
	Username string `json:"username" validate:"required"`
}

type PresencePayload struct {
	Username string `json:"username" validate:"required"`
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/broker"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/models"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/presence"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory MessageStore for tests.
type memStore struct {
	mu       sync.Mutex
	messages []*models.ChatMessage
	failWith error
}

func (m *memStore) Append(_ context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	stored := *msg
	m.messages = append(m.messages, &stored)
	return &stored, nil
}

func (m *memStore) QueryByReceiver(_ context.Context, username string) ([]*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChatMessage
	for _, msg := range m.messages {
		if msg.Receiver == username {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// fakeSession records delivered frames and presence updates.
type fakeSession struct {
	mu       sync.Mutex
	frames   []models.ServerFrame
	username string
	online   bool
}

func (f *fakeSession) Send(payload []byte) error {
	var frame models.ServerFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeSession) SetPresence(username string, online bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.username = username
	f.online = online
}

func (f *fakeSession) received() []models.ServerFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ServerFrame(nil), f.frames...)
}

func newTestService(store *memStore) (*ChatService, *broker.Router, *presence.Tracker) {
	router := broker.NewRouter()
	tracker := presence.NewTracker()
	return NewChatService(store, tracker, router), router, tracker
}

func body(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func Test_GroupChat_Persists_And_Broadcasts(t *testing.T) {
	req := require.New(t)
	store := &memStore{}
	svc, router, _ := newTestService(store)

	garden := &fakeSession{}
	lawn := &fakeSession{}
	router.Subscribe(garden, models.ChatTopic("garden"))
	router.Subscribe(lawn, models.ChatTopic("lawn"))

	before := time.Now()
	err := svc.Dispatch(context.Background(), garden, "chat/garden",
		body(t, models.ChatMessage{Sender: "alice", Content: "roses are blooming"}))
	req.NoError(err)

	frames := garden.received()
	req.Len(frames, 1)
	req.Equal("chat:garden", frames[0].Topic)

	var got models.ChatMessage
	req.NoError(json.Unmarshal(frames[0].Body, &got))
	req.Equal("alice", got.Sender)
	req.Equal("roses are blooming", got.Content)
	req.Equal("garden", got.Group)
	req.NotEmpty(got.ID)
	req.False(got.Timestamp.Before(before))

	// Sibling group stays quiet.
	req.Empty(lawn.received())

	// Round-trip: the broadcast message is the stored message.
	req.Equal(1, store.count())
	req.Equal(got.ID, store.messages[0].ID)
}

func Test_GroupChat_Persistence_Failure_Suppresses_Broadcast(t *testing.T) {
	req := require.New(t)
	store := &memStore{failWith: errors.New("store unavailable")}
	svc, router, _ := newTestService(store)

	sub := &fakeSession{}
	router.Subscribe(sub, models.ChatTopic("garden"))

	err := svc.Dispatch(context.Background(), sub, "chat/garden",
		body(t, models.ChatMessage{Sender: "alice", Content: "lost"}))

	var pErr *PersistenceError
	req.ErrorAs(err, &pErr)
	req.Empty(sub.received())
}

func Test_GroupChat_Requires_Sender(t *testing.T) {
	req := require.New(t)
	store := &memStore{}
	svc, router, _ := newTestService(store)

	sub := &fakeSession{}
	router.Subscribe(sub, models.ChatTopic("garden"))

	err := svc.Dispatch(context.Background(), sub, "chat/garden",
		body(t, models.ChatMessage{Content: "anonymous"}))

	var vErr *ValidationError
	req.ErrorAs(err, &vErr)
	req.Empty(sub.received())
	req.Equal(0, store.count())
}

func Test_GroupChat_Requires_Group(t *testing.T) {
	req := require.New(t)
	svc, _, _ := newTestService(&memStore{})

	err := svc.Dispatch(context.Background(), &fakeSession{}, "chat/",
		body(t, models.ChatMessage{Sender: "alice", Content: "hi"}))

	var vErr *ValidationError
	req.ErrorAs(err, &vErr)
}

func Test_DirectMessage_Is_Persisted_Not_Broadcast(t *testing.T) {
	req := require.New(t)
	store := &memStore{}
	svc, router, _ := newTestService(store)

	sender := &fakeSession{}
	listener := &fakeSession{}
	router.Subscribe(listener, models.ChatTopic("garden"))
	router.Subscribe(listener, models.TopicPresence)

	before := time.Now()
	err := svc.Dispatch(context.Background(), sender, models.DestMessage,
		body(t, models.ChatMessage{Sender: "alice", Receiver: "bob", Content: "psst"}))
	req.NoError(err)

	req.Empty(listener.received())
	req.Empty(sender.received())

	stored, err := store.QueryByReceiver(context.Background(), "bob")
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal("alice", stored[0].Sender)
	req.Equal("psst", stored[0].Content)
	req.NotEmpty(stored[0].ID)
	req.False(stored[0].Timestamp.Before(before))
}

func Test_Typing_Broadcasts_Without_Persisting(t *testing.T) {
	req := require.New(t)
	store := &memStore{}
	svc, router, _ := newTestService(store)

	watcher := &fakeSession{}
	router.Subscribe(watcher, models.TypingTopic("garden"))

	err := svc.Dispatch(context.Background(), &fakeSession{}, "typing/garden",
		body(t, models.TypingPayload{Username: "bob"}))
	req.NoError(err)

	frames := watcher.received()
	req.Len(frames, 1)
	req.Equal("typing:garden", frames[0].Topic)

	var payload models.TypingPayload
	req.NoError(json.Unmarshal(frames[0].Body, &payload))
	req.Equal("bob", payload.Username)
	req.Equal(0, store.count())
}

func Test_Typing_Requires_Group_And_Username(t *testing.T) {
	req := require.New(t)
	svc, _, _ := newTestService(&memStore{})

	var vErr *ValidationError
	err := svc.Dispatch(context.Background(), &fakeSession{}, "typing/",
		body(t, models.TypingPayload{Username: "bob"}))
	req.ErrorAs(err, &vErr)

	err = svc.Dispatch(context.Background(), &fakeSession{}, "typing/garden",
		body(t, models.TypingPayload{}))
	req.ErrorAs(err, &vErr)
}

func Test_Presence_Online_Offline_Broadcasts_Full_Set(t *testing.T) {
	req := require.New(t)
	svc, router, tracker := newTestService(&memStore{})

	aliceSess := &fakeSession{}
	bobSess := &fakeSession{}
	router.Subscribe(aliceSess, models.TopicPresence)
	router.Subscribe(bobSess, models.TopicPresence)

	req.NoError(svc.Dispatch(context.Background(), aliceSess, models.DestOnline,
		body(t, models.PresencePayload{Username: "alice"})))
	req.NoError(svc.Dispatch(context.Background(), bobSess, models.DestOnline,
		body(t, models.PresencePayload{Username: "bob"})))

	// Both saw the broadcast containing {alice, bob}.
	for _, sess := range []*fakeSession{aliceSess, bobSess} {
		frames := sess.received()
		req.Len(frames, 2)
		var users []string
		req.NoError(json.Unmarshal(frames[1].Body, &users))
		req.Equal([]string{"alice", "bob"}, users)
	}
	req.True(aliceSess.online)
	req.Equal("alice", aliceSess.username)

	// Bob disconnects abruptly.
	router.UnsubscribeAll(bobSess)
	svc.Disconnect(context.Background(), "bob")

	frames := aliceSess.received()
	req.Len(frames, 3)
	var users []string
	req.NoError(json.Unmarshal(frames[2].Body, &users))
	req.Equal([]string{"alice"}, users)
	req.False(tracker.Online("bob"))
}

func Test_Explicit_Offline_Clears_Session_Presence(t *testing.T) {
	req := require.New(t)
	svc, router, tracker := newTestService(&memStore{})

	sess := &fakeSession{}
	router.Subscribe(sess, models.TopicPresence)

	req.NoError(svc.Dispatch(context.Background(), sess, models.DestOnline,
		body(t, models.PresencePayload{Username: "alice"})))
	req.NoError(svc.Dispatch(context.Background(), sess, models.DestOffline,
		body(t, models.PresencePayload{Username: "alice"})))

	req.False(sess.online)
	req.False(tracker.Online("alice"))

	frames := sess.received()
	req.Len(frames, 2)
	var users []string
	req.NoError(json.Unmarshal(frames[1].Body, &users))
	req.Empty(users)
}

func Test_Unknown_Destination_Is_Rejected(t *testing.T) {
	req := require.New(t)
	svc, _, _ := newTestService(&memStore{})

	err := svc.Dispatch(context.Background(), &fakeSession{}, "teleport/garden", body(t, "zap"))

	var vErr *ValidationError
	req.ErrorAs(err, &vErr)
}

package services

import (
	"context"
	"sync"
	"time"

	"student-chat/internal/database"
	"student-chat/internal/models"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu       sync.Mutex
	rooms    map[string]*models.RoomMembership
	messages map[string]*models.Message
	roomErr  error
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:    make(map[string]*models.RoomMembership),
		messages: make(map[string]*models.Message),
	}
}

func (f *fakeStore) addRoom(participants ...string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.rooms[id] = &models.RoomMembership{ID: id, Name: "room", Type: models.RoomTypeGroup, ParticipantIDs: participants}
	return id
}

func (f *fakeStore) setParticipants(roomID string, participants ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[roomID].ParticipantIDs = participants
}

func (f *fakeStore) stored(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.messages[id]
	return ok
}

func (f *fakeStore) GetRoomParticipants(_ context.Context, roomID string) (*models.RoomMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roomErr != nil {
		return nil, f.roomErr
	}
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *r
	cp.ParticipantIDs = append([]string(nil), r.ParticipantIDs...)
	return &cp, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, msg *models.NewMessage) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	m := &models.Message{
		ID:        uuid.NewString(),
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		FileURL:   msg.FileURL,
		FileType:  msg.FileType,
		CreatedAt: time.Now(),
	}
	f.messages[m.ID] = m
	cp := *m
	return &cp, nil
}

func (f *fakeStore) GetMessageByID(_ context.Context, id string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) DeleteMessage(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[id]; !ok {
		return database.ErrNotFound
	}
	delete(f.messages, id)
	return nil
}

type published struct {
	roomID string
	msg    models.MessageReceived
	// persisted reports whether Storage already held the message when it
	// was handed to the broadcaster.
	persisted bool
}

type recordingBroadcaster struct {
	store     *fakeStore
	mu        sync.Mutex
	published []published
	retracted []string
}

func (b *recordingBroadcaster) PublishMessage(roomID string, msg models.MessageReceived) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, published{roomID: roomID, msg: msg, persisted: b.store.stored(msg.ID)})
}

func (b *recordingBroadcaster) RetractMessage(_ string, messageID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retracted = append(b.retracted, messageID)
}

package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"student-chat/internal/database"
	"student-chat/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Storage for the websocket tests.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	rooms    map[string]*models.RoomMembership
	messages map[string]*models.Message
	online   map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*models.User),
		rooms:    make(map[string]*models.RoomMembership),
		messages: make(map[string]*models.Message),
		online:   make(map[string]bool),
	}
}

func (s *memStore) addUser(name string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: uuid.NewString(), Username: name, Email: name + "@uni.test", CreatedAt: time.Now()}
	s.users[u.ID] = u
	return u
}

func (s *memStore) addRoom(name string, participants ...*models.User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := &models.RoomMembership{ID: uuid.NewString(), Name: name, Type: models.RoomTypeGroup}
	for _, u := range participants {
		room.ParticipantIDs = append(room.ParticipantIDs, u.ID)
	}
	s.rooms[room.ID] = room
	return room.ID
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *memStore) CreateUser(_ context.Context, username, email, hash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: uuid.NewString(), Username: username, Email: email, PasswordHash: hash}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *memStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) SetUserOnline(_ context.Context, userID string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[userID] = online
	return nil
}

func (s *memStore) isOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[userID]
}

func (s *memStore) GetRoomParticipants(_ context.Context, roomID string) (*models.RoomMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *r
	cp.ParticipantIDs = append([]string(nil), r.ParticipantIDs...)
	return &cp, nil
}

func (s *memStore) CreateMessage(_ context.Context, msg *models.NewMessage) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sender := s.users[msg.SenderID]
	m := &models.Message{
		ID:        uuid.NewString(),
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		FileURL:   msg.FileURL,
		FileType:  msg.FileType,
		CreatedAt: time.Now(),
		Sender:    sender.Identity(),
	}
	s.messages[m.ID] = m
	cp := *m
	return &cp, nil
}

func (s *memStore) GetMessageByID(_ context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.messages, id)
	return nil
}

// newTestClient builds a connection with no socket behind it; only its send
// buffer is used.
func newTestClient(userID, username string, buffer int) *Client {
	return &Client{
		info: models.AuthenticatedConnection{
			ConnectionID: uuid.NewString(),
			Identity:     models.Identity{ID: userID, Username: username},
			ConnectedAt:  time.Now(),
		},
		send:  make(chan []byte, buffer),
		rooms: make(map[string]struct{}),
	}
}

// drain returns every queued outbound event without blocking.
func drain(t *testing.T, c *Client) []models.Envelope {
	t.Helper()
	var out []models.Envelope
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var env models.Envelope
			require.NoError(t, json.Unmarshal(data, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func eventNames(envs []models.Envelope) []models.EventName {
	names := make([]models.EventName, 0, len(envs))
	for _, e := range envs {
		names = append(names, e.Event)
	}
	return names
}

package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"quiz-session-service/internal/models"
)

var (
	ErrNotFound  = errors.New("room not found")
	ErrExists    = errors.New("room already exists")
	ErrCodeTaken = errors.New("room code already in use")
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Mutator edits a private copy of the room. Returning an error discards the copy.
type Mutator func(room *models.Room) error

// Store holds the shared room records. Writes to one room are linearized;
// writes to different rooms proceed in parallel. Every committed write is
// delivered to the room's subscribers asynchronously.
type Store interface {
	Create(ctx context.Context, room *models.Room) error
	Read(ctx context.Context, roomID string) (*models.Room, error)
	FindByCode(ctx context.Context, code string) (*models.Room, error)
	Write(ctx context.Context, roomID string, mutate Mutator) (*models.Room, error)
	Delete(ctx context.Context, roomID string) error
	List(ctx context.Context) ([]*models.Room, error)
	Subscribe(roomID string, fn func(*models.Room)) (cancel func(), err error)
	GenerateUniqueCode(ctx context.Context) (string, error)
}

type entry struct {
	code    string
	mu      sync.Mutex
	room    *models.Room
	subs    map[int]*subscriber
	nextSub int
	deleted bool
}

type MemoryStore struct {
	mu         sync.RWMutex
	rooms      map[string]*entry
	codes      map[string]string
	codeLength int
}

func NewMemoryStore(codeLength int) *MemoryStore {
	if codeLength <= 0 {
		codeLength = 6
	}
	return &MemoryStore{
		rooms:      make(map[string]*entry),
		codes:      make(map[string]string),
		codeLength: codeLength,
	}
}

func (s *MemoryStore) Create(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return ErrExists
	}
	code := strings.ToUpper(room.Code)
	if _, ok := s.codes[code]; ok {
		return ErrCodeTaken
	}

	stored := room.Clone()
	stored.Code = code
	stored.Version = 1
	s.rooms[room.ID] = &entry{code: code, room: stored, subs: make(map[int]*subscriber)}
	s.codes[code] = room.ID
	return nil
}

func (s *MemoryStore) Read(ctx context.Context, roomID string) (*models.Room, error) {
	e, err := s.entry(roomID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrNotFound
	}
	return e.room.Clone(), nil
}

func (s *MemoryStore) FindByCode(ctx context.Context, code string) (*models.Room, error) {
	s.mu.RLock()
	roomID, ok := s.codes[strings.ToUpper(strings.TrimSpace(code))]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Read(ctx, roomID)
}

func (s *MemoryStore) Write(ctx context.Context, roomID string, mutate Mutator) (*models.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := s.entry(roomID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrNotFound
	}

	next := e.room.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.Version = e.room.Version + 1
	e.room = next

	snapshot := next.Clone()
	for _, sub := range e.subs {
		sub.offer(snapshot)
	}
	return next.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, roomID string) error {
	s.mu.Lock()
	e, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.rooms, roomID)
	if s.codes[e.code] == roomID {
		delete(s.codes, e.code)
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = true
	for id, sub := range e.subs {
		sub.stop()
		delete(e.subs, id)
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*models.Room, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.rooms))
	for _, e := range s.rooms {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	rooms := make([]*models.Room, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			rooms = append(rooms, e.room.Clone())
		}
		e.mu.Unlock()
	}
	return rooms, nil
}

func (s *MemoryStore) Subscribe(roomID string, fn func(*models.Room)) (func(), error) {
	e, err := s.entry(roomID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrNotFound
	}

	id := e.nextSub
	e.nextSub++
	sub := newSubscriber(fn)
	e.subs[id] = sub
	go sub.run()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
		sub.stop()
	}, nil
}

func (s *MemoryStore) GenerateUniqueCode(ctx context.Context) (string, error) {
	maxAttempts := 10
	for range maxAttempts {
		code, err := randomCode(s.codeLength)
		if err != nil {
			return "", err
		}

		s.mu.RLock()
		_, taken := s.codes[code]
		s.mu.RUnlock()
		if !taken {
			return code, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique room code after %d attempts", maxAttempts)
}

func (s *MemoryStore) entry(roomID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func randomCode(length int) (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(codeAlphabet)))
	for range length {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

package game

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"quiz-session-service/internal/models"
	"quiz-session-service/internal/store"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, at: c.now.Add(d), seq: c.seq, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward, running due timers in order. Callbacks run
// without the clock lock so they may schedule new timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var pending []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired {
				pending = append(pending, t)
			}
		}
		c.timers = pending
		sort.Slice(pending, func(i, j int) bool {
			if !pending[i].at.Equal(pending[j].at) {
				return pending[i].at.Before(pending[j].at)
			}
			return pending[i].seq < pending[j].seq
		})
		if len(pending) == 0 || pending[0].at.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		next := pending[0]
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()

		next.fn()
	}
}

type stubQuizzes struct {
	quizzes map[string]*models.QuizData
}

func (s *stubQuizzes) GetQuiz(ctx context.Context, quizID string) (*models.QuizData, error) {
	q, ok := s.quizzes[quizID]
	if !ok {
		return nil, errors.New("quiz not found")
	}
	return q, nil
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) SaveResult(ctx context.Context, result *models.GameResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func testQuiz() *models.QuizData {
	return &models.QuizData{
		ID:    "quiz-1",
		Title: "General Knowledge",
		Questions: []models.Question{
			{ID: "q3", Text: "Color of the sky?", Type: "text", CorrectAnswer: `["blue","azure"]`, OrderIndex: 2, Points: 500},
			{ID: "q1", Text: "Capital of France?", Type: "single", Options: []string{"Berlin", "Paris", "Rome"}, CorrectAnswer: `"Paris"`, OrderIndex: 0},
			{ID: "q2", Text: "2 + 2?", Type: "single", Options: []string{"3", "4"}, CorrectAnswer: `1`, OrderIndex: 1, TimeLimitSec: 5},
		},
	}
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	clock *fakeClock
	sink  *mockSink
	store *store.MemoryStore
	mgr   *Manager
}

func newHarness(t *testing.T, tweak ...func(*Options)) *harness {
	t.Helper()
	clock := newFakeClock()
	sink := &mockSink{}
	sink.On("SaveResult", mock.Anything, mock.Anything).Return(nil).Maybe()
	st := store.NewMemoryStore(6)

	opts := DefaultOptions()
	opts.Clock = clock
	for _, fn := range tweak {
		fn(&opts)
	}

	quizzes := &stubQuizzes{quizzes: map[string]*models.QuizData{"quiz-1": testQuiz()}}
	return &harness{
		t:     t,
		ctx:   context.Background(),
		clock: clock,
		sink:  sink,
		store: st,
		mgr:   NewManager(st, quizzes, sink, opts),
	}
}

func (h *harness) createRoom(settings models.RoomSettings) *models.Room {
	h.t.Helper()
	if settings.TimePerQuestion == 0 {
		settings.TimePerQuestion = 10
	}
	room, err := h.mgr.CreateRoom(h.ctx, RoomConfig{QuizID: "quiz-1", Settings: settings}, "host", "Hana")
	require.NoError(h.t, err)
	return room
}

func (h *harness) join(room *models.Room, id, name string) *models.Room {
	h.t.Helper()
	updated, err := h.mgr.JoinRoom(h.ctx, room.Code, "", id, name)
	require.NoError(h.t, err)
	return updated
}

func (h *harness) room(id string) *models.Room {
	h.t.Helper()
	room, err := h.mgr.GetRoom(h.ctx, id)
	require.NoError(h.t, err)
	return room
}

// startedRoom returns a playing room with the host and player "p1".
func (h *harness) startedRoom(settings models.RoomSettings) *models.Room {
	h.t.Helper()
	room := h.createRoom(settings)
	h.join(room, "p1", "Pavel")
	started, err := h.mgr.StartGame(h.ctx, room.ID, "host")
	require.NoError(h.t, err)
	return started
}

func (h *harness) submit(roomID, playerID string, index int, answer string, remaining int) (*AnswerResult, error) {
	return h.mgr.SubmitAnswer(h.ctx, AnswerSubmission{
		RoomID:        roomID,
		QuestionIndex: index,
		PlayerID:      playerID,
		Answer:        answer,
		TimeRemaining: remaining,
	})
}

func waitForEvent(t *testing.T, sub *Subscription, want EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-sub.C:
			if !ok {
				t.Fatalf("subscription closed before %s", want)
			}
			if e.Type == want {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

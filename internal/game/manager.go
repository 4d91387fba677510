package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"quiz-session-service/internal/constants"
	"quiz-session-service/internal/leaderboard"
	"quiz-session-service/internal/models"
	"quiz-session-service/internal/scoring"
	"quiz-session-service/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	maxCodeAttempts    = 3
	minTimePerQuestion = 1
	maxTimePerQuestion = 3600
	tombstoneTTL       = time.Hour
	callbackTimeout    = 5 * time.Second
)

type QuizProvider interface {
	GetQuiz(ctx context.Context, quizID string) (*models.QuizData, error)
}

type Options struct {
	Clock                  Clock
	Scoring                scoring.Policy
	GracePeriod            time.Duration
	AnswerPhaseDuration    time.Duration
	ResultsPhaseDuration   time.Duration
	DefaultTimePerQuestion int
	DefaultMaxPlayers      int
	MaxPlayersLimit        int
	MinPlayersToStart      int
	ChatMaxLength          int
	ChatHistoryLimit       int
	FinishedRoomTTL        time.Duration
}

func DefaultOptions() Options {
	return Options{
		Clock:                  RealClock(),
		Scoring:                scoring.DefaultPolicy(),
		GracePeriod:            30 * time.Second,
		AnswerPhaseDuration:    3 * time.Second,
		ResultsPhaseDuration:   5 * time.Second,
		DefaultTimePerQuestion: 20,
		DefaultMaxPlayers:      10,
		MaxPlayersLimit:        100,
		MinPlayersToStart:      1,
		ChatMaxLength:          500,
		ChatHistoryLimit:       200,
		FinishedRoomTTL:        10 * time.Minute,
	}
}

type RoomConfig struct {
	QuizID     string
	MaxPlayers int
	IsPrivate  bool
	Password   string
	Settings   models.RoomSettings
}

// SettingsUpdate is a partial update; nil fields are left unchanged.
type SettingsUpdate struct {
	TimePerQuestion *int    `json:"time_per_question,omitempty"`
	ShowAnswers     *bool   `json:"show_answers,omitempty"`
	AllowLateJoin   *bool   `json:"allow_late_join,omitempty"`
	AutoStart       *bool   `json:"auto_start,omitempty"`
	MaxPlayers      *int    `json:"max_players,omitempty"`
	IsPrivate       *bool   `json:"is_private,omitempty"`
	Password        *string `json:"password,omitempty"`
}

// Manager owns every live room. All room mutations are serialized through the
// store's per-room Write; side effects run after the write commits.
type Manager struct {
	store   store.Store
	quizzes QuizProvider
	sink    ResultSink
	clock   Clock
	opts    Options

	mu       sync.RWMutex
	runtimes map[string]*roomRuntime
	closed   map[string]time.Time

	archives sync.WaitGroup
}

func NewManager(s store.Store, quizzes QuizProvider, sink ResultSink, opts Options) *Manager {
	defaults := DefaultOptions()
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}
	if opts.Scoring.BasePoints <= 0 {
		opts.Scoring = defaults.Scoring
	}
	if opts.DefaultTimePerQuestion <= 0 {
		opts.DefaultTimePerQuestion = defaults.DefaultTimePerQuestion
	}
	if opts.DefaultMaxPlayers <= 0 {
		opts.DefaultMaxPlayers = defaults.DefaultMaxPlayers
	}
	if opts.MaxPlayersLimit <= 0 {
		opts.MaxPlayersLimit = defaults.MaxPlayersLimit
	}
	if opts.MinPlayersToStart <= 0 {
		opts.MinPlayersToStart = defaults.MinPlayersToStart
	}
	if opts.ChatMaxLength <= 0 {
		opts.ChatMaxLength = defaults.ChatMaxLength
	}

	return &Manager{
		store:    s,
		quizzes:  quizzes,
		sink:     sink,
		clock:    opts.Clock,
		opts:     opts,
		runtimes: make(map[string]*roomRuntime),
		closed:   make(map[string]time.Time),
	}
}

// effects are collected inside a mutation and applied once it commits.
type effects struct {
	events      []Event
	notices     []string
	startClock  bool
	stopClock   bool
	finished    bool
	closeReason string
	startGrace  []string
	cancelGrace []string
}

func (fx *effects) emit(t EventType, payload any) {
	fx.events = append(fx.events, Event{Type: t, Payload: payload})
}

func (fx *effects) notice(format string, args ...any) {
	fx.notices = append(fx.notices, fmt.Sprintf(format, args...))
}

type mutation func(rt *roomRuntime, r *models.Room, fx *effects) error

func (m *Manager) runtime(roomID string) (*roomRuntime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rt, ok := m.runtimes[roomID]; ok {
		return rt, nil
	}
	if _, ok := m.closed[roomID]; ok {
		return nil, ErrRoomClosed
	}
	return nil, ErrRoomNotFound
}

func (m *Manager) storeError(roomID string, err error) error {
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.closed[roomID]; ok {
		return ErrRoomClosed
	}
	return ErrRoomNotFound
}

func (m *Manager) mutate(ctx context.Context, roomID string, fn mutation) (*models.Room, error) {
	rt, err := m.runtime(roomID)
	if err != nil {
		return nil, err
	}

	fx := &effects{}
	room, err := m.store.Write(ctx, roomID, func(r *models.Room) error {
		*fx = effects{}
		if r.Closed {
			return ErrRoomClosed
		}
		return fn(rt, r, fx)
	})
	if errors.Is(err, errNoChange) {
		m.apply(rt, nil, fx)
		if room, err = m.store.Read(ctx, roomID); err != nil {
			return nil, m.storeError(roomID, err)
		}
		return room, nil
	}
	if err != nil {
		return nil, m.storeError(roomID, err)
	}

	m.apply(rt, room, fx)
	return room, nil
}

func (m *Manager) apply(rt *roomRuntime, room *models.Room, fx *effects) {
	var version int64
	if room != nil {
		version = room.Version
	}
	for _, e := range fx.events {
		e.RoomID = rt.id
		e.Version = version
		rt.bus.Publish(e)
	}
	for _, text := range fx.notices {
		m.postSystemMessage(rt, text)
	}
	for _, id := range fx.cancelGrace {
		rt.cancelGrace(id)
	}
	for _, id := range fx.startGrace {
		m.startGrace(rt, id)
	}
	if fx.stopClock {
		rt.stopTicker()
	}
	if fx.startClock {
		m.startClock(rt)
	}
	if fx.finished && room != nil {
		m.archive(room)
	}
	if fx.closeReason != "" {
		m.closeRoom(rt, fx.closeReason)
	}
}

func (m *Manager) CreateRoom(ctx context.Context, cfg RoomConfig, hostID, hostName string) (*models.Room, error) {
	hostName = strings.TrimSpace(hostName)
	if hostID == "" || hostName == "" {
		return nil, fmt.Errorf("%w: host id and name are required", ErrInvalidSettings)
	}
	if cfg.QuizID == "" {
		return nil, fmt.Errorf("%w: quiz id is required", ErrInvalidSettings)
	}
	if cfg.MaxPlayers == 0 {
		cfg.MaxPlayers = m.opts.DefaultMaxPlayers
	}
	if cfg.Settings.TimePerQuestion == 0 {
		cfg.Settings.TimePerQuestion = m.opts.DefaultTimePerQuestion
	}
	if err := m.validateLimits(cfg.MaxPlayers, cfg.Settings.TimePerQuestion); err != nil {
		return nil, err
	}

	quiz, err := m.loadQuiz(ctx, cfg.QuizID)
	if err != nil {
		return nil, err
	}

	var hash string
	if cfg.IsPrivate && cfg.Password != "" {
		if hash, err = hashPassword(cfg.Password); err != nil {
			return nil, err
		}
	}

	now := m.clock.Now()
	room := &models.Room{
		ID:     uuid.NewString(),
		HostID: hostID,
		Players: map[string]*models.Player{
			hostID: {
				ID:       hostID,
				Name:     hostName,
				IsHost:   true,
				IsOnline: true,
				JoinedAt: now,
			},
		},
		MaxPlayers:   cfg.MaxPlayers,
		IsPrivate:    cfg.IsPrivate,
		PasswordHash: hash,
		Status:       constants.RoomStatusWaiting,
		Settings:     cfg.Settings,
		QuizID:       quiz.ID,
		QuizTitle:    quiz.Title,
		CreatedAt:    now,
		Departed:     make(map[string]*models.Player),
		Banned:       make(map[string]bool),
		NextJoinSeq:  1,
	}

	rt := newRoomRuntime(room.ID, quiz, m.opts.ChatHistoryLimit)
	m.mu.Lock()
	m.runtimes[room.ID] = rt
	m.mu.Unlock()

	if err := m.insertRoom(ctx, room); err != nil {
		m.mu.Lock()
		delete(m.runtimes, room.ID)
		m.mu.Unlock()
		return nil, err
	}

	unsubscribe, err := m.store.Subscribe(room.ID, func(snapshot *models.Room) {
		rt.bus.Publish(Event{Type: EventRoomUpdated, RoomID: snapshot.ID, Version: snapshot.Version, Payload: snapshot})
	})
	if err != nil {
		log.Warn().Err(err).Str("room_id", room.ID).Msg("Failed to subscribe to room snapshots")
	} else {
		rt.unsubscribe = unsubscribe
	}

	log.Info().Str("room_id", room.ID).Str("code", room.Code).Str("host_id", hostID).Str("quiz_id", quiz.ID).Msg("Room created")

	return m.store.Read(ctx, room.ID)
}

func (m *Manager) insertRoom(ctx context.Context, room *models.Room) error {
	for attempt := 1; ; attempt++ {
		code, err := m.store.GenerateUniqueCode(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate room code: %w", err)
		}
		room.Code = code

		err = m.store.Create(ctx, room)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrCodeTaken) || attempt >= maxCodeAttempts {
			return fmt.Errorf("failed to create room: %w", err)
		}
	}
}

func (m *Manager) loadQuiz(ctx context.Context, quizID string) (*models.QuizData, error) {
	quiz, err := m.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuizUnavailable, err)
	}
	if quiz == nil || len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("%w: quiz %s has no questions", ErrQuizUnavailable, quizID)
	}

	cp := *quiz
	cp.Questions = append([]models.Question(nil), quiz.Questions...)
	sort.SliceStable(cp.Questions, func(i, j int) bool {
		return cp.Questions[i].OrderIndex < cp.Questions[j].OrderIndex
	})
	if cp.ID == "" {
		cp.ID = quizID
	}
	return &cp, nil
}

func (m *Manager) validateLimits(maxPlayers, timePerQuestion int) error {
	if maxPlayers < 1 || maxPlayers > m.opts.MaxPlayersLimit {
		return fmt.Errorf("%w: max players must be between 1 and %d", ErrInvalidSettings, m.opts.MaxPlayersLimit)
	}
	if timePerQuestion < minTimePerQuestion || timePerQuestion > maxTimePerQuestion {
		return fmt.Errorf("%w: time per question must be between %d and %d seconds", ErrInvalidSettings, minTimePerQuestion, maxTimePerQuestion)
	}
	return nil
}

func (m *Manager) JoinRoom(ctx context.Context, code, password, playerID, playerName string) (*models.Room, error) {
	playerName = strings.TrimSpace(playerName)
	if playerID == "" || playerName == "" {
		return nil, fmt.Errorf("%w: player id and name are required", ErrInvalidSettings)
	}

	found, err := m.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if found.Closed || found.Status == constants.RoomStatusFinished {
		return nil, ErrRoomNotFound
	}

	_, member := found.Players[playerID]
	if !member && found.IsPrivate && !checkPassword(password, found.PasswordHash) {
		return nil, ErrInvalidPassword
	}
	checkedHash := found.PasswordHash

	room, err := m.mutate(ctx, found.ID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		if _, ok := r.Players[playerID]; ok {
			return errNoChange
		}
		if r.Status == constants.RoomStatusFinished {
			return ErrRoomNotFound
		}
		if r.IsPrivate && r.PasswordHash != checkedHash {
			return ErrInvalidPassword
		}
		if r.Banned[playerID] {
			return fmt.Errorf("%w: player was removed from this room", ErrNotAuthorized)
		}
		if len(r.Players) >= r.MaxPlayers {
			return ErrRoomFull
		}
		if r.Status == constants.RoomStatusPlaying && !r.Settings.AllowLateJoin {
			return ErrGameAlreadyStarted
		}

		p := &models.Player{
			ID:       playerID,
			Name:     playerName,
			IsOnline: true,
		}
		if gone, ok := r.Departed[playerID]; ok {
			// A returning player picks up their score and seniority.
			p.Score = gone.Score
			p.JoinedAt = gone.JoinedAt
			p.JoinOrder = gone.JoinOrder
			delete(r.Departed, playerID)
		} else {
			p.JoinedAt = m.clock.Now()
			p.JoinOrder = r.NextJoinSeq
			r.NextJoinSeq++
		}
		if r.Game != nil {
			p.CurrentQuestion = r.Game.CurrentQuestionIndex
		}
		r.Players[playerID] = p

		fx.emit(EventPresenceChanged, PresencePayload{PlayerID: p.ID, Name: p.Name, Action: constants.ActionJoined, Online: true, HostID: r.HostID})
		fx.notice("%s joined the room", p.Name)
		if r.Game != nil {
			m.refreshLeaderboard(r, fx)
		}
		return nil
	})
	if errors.Is(err, ErrRoomClosed) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("room_id", room.ID).Str("player_id", playerID).Msg("Player joined room")
	return room, nil
}

// LeaveRoom is idempotent: leaving a room the player is not in, or one that
// has already closed, succeeds.
func (m *Manager) LeaveRoom(ctx context.Context, roomID, playerID string) error {
	_, err := m.mutate(ctx, roomID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		p, ok := r.Players[playerID]
		if !ok {
			return errNoChange
		}
		m.removePlayer(rt, r, p, constants.ActionLeft, fx)
		return nil
	})
	if errors.Is(err, ErrRoomClosed) {
		return nil
	}
	return err
}

func (m *Manager) KickPlayer(ctx context.Context, roomID, targetID, requesterID string) error {
	_, err := m.mutate(ctx, roomID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		if r.HostID != requesterID {
			return ErrNotAuthorized
		}
		if targetID == requesterID {
			return fmt.Errorf("%w: host cannot kick themselves", ErrNotAuthorized)
		}
		p, ok := r.Players[targetID]
		if !ok {
			if r.Banned[targetID] {
				return errNoChange
			}
			return ErrNotAMember
		}
		if r.Banned == nil {
			r.Banned = make(map[string]bool)
		}
		r.Banned[targetID] = true
		m.removePlayer(rt, r, p, constants.ActionKicked, fx)
		return nil
	})
	if err == nil {
		log.Info().Str("room_id", roomID).Str("player_id", targetID).Msg("Player kicked")
	}
	return err
}

func (m *Manager) UpdateRoomSettings(ctx context.Context, roomID string, upd SettingsUpdate, requesterID string) (*models.Room, error) {
	var newHash string
	if upd.Password != nil && *upd.Password != "" {
		h, err := hashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		newHash = h
	}

	return m.mutate(ctx, roomID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		if r.HostID != requesterID {
			return ErrNotAuthorized
		}
		if r.Status == constants.RoomStatusFinished {
			return fmt.Errorf("%w: game has finished", ErrPhase)
		}

		settings := r.Settings
		maxPlayers := r.MaxPlayers
		if upd.TimePerQuestion != nil && *upd.TimePerQuestion != settings.TimePerQuestion {
			if r.Status == constants.RoomStatusPlaying {
				return ErrGameInProgress
			}
			settings.TimePerQuestion = *upd.TimePerQuestion
		}
		if upd.MaxPlayers != nil {
			maxPlayers = *upd.MaxPlayers
			if maxPlayers < len(r.Players) {
				return fmt.Errorf("%w: max players is below the current player count", ErrInvalidSettings)
			}
		}
		if err := m.validateLimits(maxPlayers, settings.TimePerQuestion); err != nil {
			return err
		}
		if upd.ShowAnswers != nil {
			settings.ShowAnswers = *upd.ShowAnswers
		}
		if upd.AllowLateJoin != nil {
			settings.AllowLateJoin = *upd.AllowLateJoin
		}
		if upd.AutoStart != nil {
			settings.AutoStart = *upd.AutoStart
		}

		r.Settings = settings
		r.MaxPlayers = maxPlayers
		if upd.IsPrivate != nil {
			r.IsPrivate = *upd.IsPrivate
		}
		if upd.Password != nil {
			r.PasswordHash = newHash
		}
		if !r.IsPrivate {
			r.PasswordHash = ""
		}

		m.maybeAutoStart(rt, r, fx)
		return nil
	})
}

func (m *Manager) SetReady(ctx context.Context, roomID, playerID string, ready bool) (*models.Room, error) {
	return m.mutate(ctx, roomID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		p, ok := r.Players[playerID]
		if !ok {
			return ErrNotAMember
		}
		if r.Status != constants.RoomStatusWaiting || p.IsReady == ready {
			return errNoChange
		}
		p.IsReady = ready
		m.maybeAutoStart(rt, r, fx)
		return nil
	})
}

func (m *Manager) maybeAutoStart(rt *roomRuntime, r *models.Room, fx *effects) {
	if !r.Settings.AutoStart || r.Status != constants.RoomStatusWaiting || len(r.Players) < m.opts.MinPlayersToStart {
		return
	}
	for _, p := range r.Players {
		if !p.IsReady {
			return
		}
	}
	if err := m.beginGame(rt, r, fx); err != nil {
		log.Warn().Err(err).Str("room_id", r.ID).Msg("Auto start failed")
	}
}

func (m *Manager) CloseRoom(ctx context.Context, roomID, requesterID string) error {
	_, err := m.mutate(ctx, roomID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		if r.HostID != requesterID {
			return ErrNotAuthorized
		}
		r.Closed = true
		fx.closeReason = constants.CloseReasonHost
		return nil
	})
	return err
}

func (m *Manager) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	if _, err := m.runtime(roomID); err != nil {
		return nil, err
	}
	room, err := m.store.Read(ctx, roomID)
	if err != nil {
		return nil, m.storeError(roomID, err)
	}
	return room, nil
}

// ListOpenRooms returns public rooms that are still accepting players.
func (m *Manager) ListOpenRooms(ctx context.Context) ([]*models.Room, error) {
	rooms, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}

	open := make([]*models.Room, 0, len(rooms))
	for _, r := range rooms {
		if r.Closed || r.IsPrivate || r.Status != constants.RoomStatusWaiting {
			continue
		}
		open = append(open, r)
	}
	sort.Slice(open, func(i, j int) bool {
		return open[i].CreatedAt.Before(open[j].CreatedAt)
	})
	return open, nil
}

func (m *Manager) Subscribe(roomID string) (*Subscription, error) {
	rt, err := m.runtime(roomID)
	if err != nil {
		return nil, err
	}
	return rt.bus.Subscribe(), nil
}

func (m *Manager) removePlayer(rt *roomRuntime, r *models.Room, p *models.Player, action string, fx *effects) {
	delete(r.Players, p.ID)
	fx.cancelGrace = append(fx.cancelGrace, p.ID)

	if r.StartedAt != nil {
		gone := *p
		gone.IsHost = false
		gone.IsOnline = false
		if r.Departed == nil {
			r.Departed = make(map[string]*models.Player)
		}
		r.Departed[p.ID] = &gone
	}

	fx.emit(EventPresenceChanged, PresencePayload{PlayerID: p.ID, Name: p.Name, Action: action, HostID: r.HostID})
	if action == constants.ActionKicked {
		fx.notice("%s was removed from the room", p.Name)
	} else {
		fx.notice("%s left the room", p.Name)
	}

	if len(r.Players) == 0 {
		r.Closed = true
		fx.closeReason = constants.CloseReasonEmpty
		return
	}
	if r.HostID == p.ID {
		m.reassignHost(r, fx)
	}
	if r.Game != nil {
		m.refreshLeaderboard(r, fx)
		m.checkAllAnswered(rt, r, fx)
	}
}

func (m *Manager) reassignHost(r *models.Room, fx *effects) {
	var next *models.Player
	for _, p := range r.Players {
		if next == nil || joinedBefore(p, next) {
			next = p
		}
	}
	if next == nil {
		return
	}

	r.HostID = next.ID
	for id, p := range r.Players {
		p.IsHost = id == next.ID
	}

	fx.emit(EventPresenceChanged, PresencePayload{PlayerID: next.ID, Name: next.Name, Action: constants.ActionHostChanged, Online: next.IsOnline, HostID: next.ID})
	fx.notice("%s is now the host", next.Name)
	log.Info().Str("room_id", r.ID).Str("host_id", next.ID).Msg("Host reassigned")
}

func joinedBefore(a, b *models.Player) bool {
	if !a.JoinedAt.Equal(b.JoinedAt) {
		return a.JoinedAt.Before(b.JoinedAt)
	}
	return a.JoinOrder < b.JoinOrder
}

func (m *Manager) refreshLeaderboard(r *models.Room, fx *effects) {
	g := r.Game
	g.Leaderboard = leaderboard.Compute(r.PlayerList(), g.Baseline)
	fx.emit(EventLeaderboardUpdated, LeaderboardPayload{Leaderboard: g.Leaderboard})
}

func (m *Manager) closeRoom(rt *roomRuntime, reason string) {
	m.mu.Lock()
	if _, ok := m.runtimes[rt.id]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.runtimes, rt.id)
	m.closed[rt.id] = m.clock.Now()
	m.mu.Unlock()

	rt.stopAll()
	rt.unsubscribe()
	rt.bus.Publish(Event{Type: EventRoomClosed, RoomID: rt.id, Payload: RoomClosedPayload{Reason: reason}})
	rt.bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()
	if err := m.store.Delete(ctx, rt.id); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).Str("room_id", rt.id).Msg("Failed to delete closed room")
	}

	log.Info().Str("room_id", rt.id).Str("reason", reason).Msg("Room closed")
}

// Shutdown stops every room's timers and waits for pending result archives.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	for _, rt := range m.runtimes {
		rt.stopAll()
	}
	m.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		m.archives.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

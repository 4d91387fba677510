package models

import (
	"sort"
	"time"
)

type Room struct {
	ID           string             `json:"id"`
	Code         string             `json:"code"`
	HostID       string             `json:"host_id"`
	Players      map[string]*Player `json:"players"`
	MaxPlayers   int                `json:"max_players"`
	IsPrivate    bool               `json:"is_private"`
	PasswordHash string             `json:"-"`
	Status       string             `json:"status"` // "waiting", "playing", "finished"
	Settings     RoomSettings       `json:"settings"`
	QuizID       string             `json:"quiz_id"`
	QuizTitle    string             `json:"quiz_title"`
	CreatedAt    time.Time          `json:"created_at"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	EndedAt      *time.Time         `json:"ended_at,omitempty"`
	Game         *GameState         `json:"game,omitempty"`
	Results      []LeaderboardEntry `json:"results,omitempty"`
	Departed     map[string]*Player `json:"departed,omitempty"`
	Banned       map[string]bool    `json:"-"`
	AnswerLog    []AnswerRecord     `json:"-"`
	NextJoinSeq  int                `json:"-"`
	Closed       bool               `json:"closed,omitempty"`
	Version      int64              `json:"version"`
}

type RoomSettings struct {
	TimePerQuestion int  `json:"time_per_question"`
	ShowAnswers     bool `json:"show_answers"`
	AllowLateJoin   bool `json:"allow_late_join"`
	AutoStart       bool `json:"auto_start"`
}

type Player struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	IsHost          bool       `json:"is_host"`
	IsReady         bool       `json:"is_ready"`
	Score           int        `json:"score"`
	CurrentQuestion int        `json:"current_question"`
	IsOnline        bool       `json:"is_online"`
	JoinedAt        time.Time  `json:"joined_at"`
	JoinOrder       int        `json:"join_order"`
	DisconnectedAt  *time.Time `json:"disconnected_at,omitempty"`
}

type GameState struct {
	CurrentQuestionIndex int                     `json:"current_question_index"`
	TotalQuestions       int                     `json:"total_questions"`
	TimeRemaining        int                     `json:"time_remaining"`
	Phase                string                  `json:"phase"` // "question", "answer", "results", "finished"
	Paused               bool                    `json:"paused"`
	Skipped              bool                    `json:"skipped,omitempty"`
	Question             *QuestionView           `json:"question,omitempty"`
	CorrectAnswer        string                  `json:"correct_answer,omitempty"`
	Answered             map[string]bool         `json:"answered"`
	Reveal               map[string]AnswerRecord `json:"reveal,omitempty"`
	PlayerAnswers        map[string]AnswerRecord `json:"-"`
	Leaderboard          []LeaderboardEntry      `json:"leaderboard"`
	Baseline             []LeaderboardEntry      `json:"-"`
}

type AnswerRecord struct {
	RoomID         string    `json:"room_id"`
	QuestionID     string    `json:"question_id"`
	QuestionIndex  int       `json:"question_index"`
	PlayerID       string    `json:"player_id"`
	SelectedAnswer string    `json:"selected_answer"`
	TimeRemaining  int       `json:"time_remaining"`
	IsCorrect      bool      `json:"is_correct"`
	PointsAwarded  int       `json:"points_awarded"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

type ChatMessage struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	PlayerID   string    `json:"player_id,omitempty"`
	PlayerName string    `json:"player_name,omitempty"`
	Message    string    `json:"message"`
	Type       string    `json:"type"` // "player" or "system"
	Timestamp  time.Time `json:"timestamp"`
}

type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"player_id"`
	Name       string `json:"name"`
	Score      int    `json:"score"`
	RankDelta  int    `json:"rank_delta"`
	ScoreDelta int    `json:"score_delta"`
}

type QuizData struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Type          string   `json:"type"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	OrderIndex    int      `json:"order_index"`
	Points        int      `json:"points"`
	TimeLimitSec  int      `json:"time_limit_sec"`
}

// QuestionView is the part of a question that is safe to send to players.
type QuestionView struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Type         string   `json:"type"`
	Options      []string `json:"options,omitempty"`
	Points       int      `json:"points"`
	TimeLimitSec int      `json:"time_limit_sec"`
}

type GameResult struct {
	RoomID    string             `json:"room_id"`
	Code      string             `json:"code"`
	QuizID    string             `json:"quiz_id"`
	QuizTitle string             `json:"quiz_title"`
	HostID    string             `json:"host_id"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
	EndedAt   time.Time          `json:"ended_at"`
	Standings []LeaderboardEntry `json:"standings"`
	Departed  []LeaderboardEntry `json:"departed,omitempty"`
	Answers   []AnswerRecord     `json:"answers"`
}

func (q Question) View() *QuestionView {
	return &QuestionView{
		ID:           q.ID,
		Text:         q.Text,
		Type:         q.Type,
		Options:      append([]string(nil), q.Options...),
		Points:       q.Points,
		TimeLimitSec: q.TimeLimitSec,
	}
}

// Clone returns a deep copy; snapshots handed to subscribers never alias store state.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Players = clonePlayers(r.Players)
	c.Departed = clonePlayers(r.Departed)
	if r.Banned != nil {
		c.Banned = make(map[string]bool, len(r.Banned))
		for k, v := range r.Banned {
			c.Banned[k] = v
		}
	}
	c.StartedAt = cloneTime(r.StartedAt)
	c.EndedAt = cloneTime(r.EndedAt)
	c.Results = append([]LeaderboardEntry(nil), r.Results...)
	c.AnswerLog = append([]AnswerRecord(nil), r.AnswerLog...)
	c.Game = r.Game.Clone()
	return &c
}

func (g *GameState) Clone() *GameState {
	if g == nil {
		return nil
	}
	c := *g
	if g.Question != nil {
		q := *g.Question
		q.Options = append([]string(nil), g.Question.Options...)
		c.Question = &q
	}
	c.Answered = make(map[string]bool, len(g.Answered))
	for k, v := range g.Answered {
		c.Answered[k] = v
	}
	c.PlayerAnswers = make(map[string]AnswerRecord, len(g.PlayerAnswers))
	for k, v := range g.PlayerAnswers {
		c.PlayerAnswers[k] = v
	}
	if g.Reveal != nil {
		c.Reveal = make(map[string]AnswerRecord, len(g.Reveal))
		for k, v := range g.Reveal {
			c.Reveal[k] = v
		}
	}
	c.Leaderboard = append([]LeaderboardEntry(nil), g.Leaderboard...)
	c.Baseline = append([]LeaderboardEntry(nil), g.Baseline...)
	return &c
}

// PlayerList returns the players ordered by join order.
func (r *Room) PlayerList() []Player {
	list := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].JoinOrder < list[j].JoinOrder
	})
	return list
}

func clonePlayers(src map[string]*Player) map[string]*Player {
	if src == nil {
		return nil
	}
	dst := make(map[string]*Player, len(src))
	for id, p := range src {
		cp := *p
		cp.DisconnectedAt = cloneTime(p.DisconnectedAt)
		dst[id] = &cp
	}
	return dst
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

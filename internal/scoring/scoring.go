package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"quiz-session-service/internal/models"
)

// Policy controls how many points a correct answer is worth.
//
// A correct answer earns the question's base points plus a speed bonus of
// base*SpeedBonusRatio*(remaining/limit)^DecayExponent, rounded to whole
// points. The bonus is zero once the countdown has run out and is never
// negative. It never grows as time passes, but it only drops every second
// while the per-second step is at least one point: with the linear curve that
// needs base*SpeedBonusRatio >= limit seconds, otherwise neighbouring seconds
// can share a value.
type Policy struct {
	BasePoints      int
	SpeedBonusRatio float64
	DecayExponent   float64
}

func DefaultPolicy() Policy {
	return Policy{
		BasePoints:      1000,
		SpeedBonusRatio: 0.5,
		DecayExponent:   1.0,
	}
}

// Points scores one answer. questionPoints overrides the policy base when positive.
func (p Policy) Points(isCorrect bool, questionPoints, timeLimitSec, timeRemaining int) int {
	if !isCorrect {
		return 0
	}
	base := p.Base(questionPoints)
	return base + p.SpeedBonus(base, timeLimitSec, timeRemaining)
}

func (p Policy) Base(questionPoints int) int {
	if questionPoints > 0 {
		return questionPoints
	}
	return p.BasePoints
}

func (p Policy) SpeedBonus(base, timeLimitSec, timeRemaining int) int {
	if timeLimitSec <= 0 || base <= 0 || p.SpeedBonusRatio <= 0 {
		return 0
	}
	remaining := min(max(timeRemaining, 0), timeLimitSec)
	exp := p.DecayExponent
	if exp <= 0 {
		exp = 1
	}

	ratio := math.Pow(float64(remaining)/float64(timeLimitSec), exp)
	bonus := math.Round(float64(base) * p.SpeedBonusRatio * ratio)
	return max(int(bonus), 0)
}

// IsCorrect compares a submitted answer with the question's authoritative answer.
// The stored answer is JSON: a string, a number (option index or numeric answer)
// or an array of accepted answers. Anything that is not valid JSON is compared verbatim.
func IsCorrect(selected string, q models.Question) bool {
	got := normalize(selected)
	if got == "" {
		return false
	}

	var correct any
	if err := json.Unmarshal([]byte(q.CorrectAnswer), &correct); err != nil {
		return got == normalize(q.CorrectAnswer)
	}

	for _, accepted := range acceptedAnswers(correct, q.Options) {
		if got == accepted {
			return true
		}
	}
	return false
}

func acceptedAnswers(correct any, options []string) []string {
	switch v := correct.(type) {
	case []any:
		var out []string
		for _, item := range v {
			out = append(out, acceptedAnswers(item, options)...)
		}
		return out
	case float64:
		out := []string{normalize(fmt.Sprintf("%v", v))}
		if idx := int(v); float64(idx) == v && idx >= 0 && idx < len(options) {
			out = append(out, normalize(options[idx]))
		}
		return out
	case nil:
		return nil
	default:
		return []string{normalize(fmt.Sprintf("%v", v))}
	}
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

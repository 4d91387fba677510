package scoring

import (
	"testing"

	"quiz-session-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPoints_CorrectAnswerEarnsBasePlusBonus(t *testing.T) {
	p := DefaultPolicy()

	// 10 second question answered with 7 seconds left: 3 seconds elapsed.
	assert.Equal(t, 1000+350, p.Points(true, 0, 10, 7))
	assert.Equal(t, 1500, p.Points(true, 0, 10, 10))
	assert.Equal(t, 1000, p.Points(true, 0, 10, 0))
}

func TestPoints_IncorrectAnswerEarnsNothing(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 0, p.Points(false, 0, 10, 10))
	assert.Equal(t, 0, p.Points(false, 200, 10, 5))
}

func TestPoints_QuestionPointsOverrideBase(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 200+50, p.Points(true, 200, 10, 5))
}

func TestSpeedBonus_StrictlyDecreasingInElapsedTime(t *testing.T) {
	p := Policy{BasePoints: 1000, SpeedBonusRatio: 0.5, DecayExponent: 2}

	prev := p.SpeedBonus(1000, 20, 20)
	for remaining := 19; remaining >= 0; remaining-- {
		bonus := p.SpeedBonus(1000, 20, remaining)
		assert.Less(t, bonus, prev, "remaining=%d", remaining)
		assert.GreaterOrEqual(t, bonus, 0)
		prev = bonus
	}
	assert.Equal(t, 0, prev)
}

func TestSpeedBonus_SmallBonusOverLongLimitNeverIncreases(t *testing.T) {
	p := DefaultPolicy()

	// 500 bonus points spread over an hour: several seconds share a value.
	assert.Equal(t, p.SpeedBonus(1000, 3600, 3599), p.SpeedBonus(1000, 3600, 3598))
	assert.Equal(t, p.SpeedBonus(10, 20, 19), p.SpeedBonus(10, 20, 18))

	for _, limit := range []int{20, 3600} {
		prev := p.SpeedBonus(1000, limit, limit)
		for remaining := limit - 1; remaining >= 0; remaining-- {
			bonus := p.SpeedBonus(1000, limit, remaining)
			assert.LessOrEqual(t, bonus, prev, "limit=%d remaining=%d", limit, remaining)
			prev = bonus
		}
		assert.Equal(t, 0, prev)
	}
}

func TestSpeedBonus_LinearStepOfAtLeastOnePointIsStrict(t *testing.T) {
	p := DefaultPolicy()

	// base*ratio = 500 >= 500 seconds, so every second costs at least a point.
	prev := p.SpeedBonus(1000, 500, 500)
	for remaining := 499; remaining >= 0; remaining-- {
		bonus := p.SpeedBonus(1000, 500, remaining)
		assert.Less(t, bonus, prev, "remaining=%d", remaining)
		prev = bonus
	}
}

func TestSpeedBonus_ClampsOutOfRangeRemaining(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, p.SpeedBonus(1000, 10, 10), p.SpeedBonus(1000, 10, 50))
	assert.Equal(t, 0, p.SpeedBonus(1000, 10, -3))
	assert.Equal(t, 0, p.SpeedBonus(1000, 0, 5))
}

func TestIsCorrect(t *testing.T) {
	tests := []struct {
		name     string
		selected string
		question models.Question
		want     bool
	}{
		{"plain text", "  Paris ", models.Question{CorrectAnswer: "paris"}, true},
		{"json string", "PARIS", models.Question{CorrectAnswer: `"Paris"`}, true},
		{"wrong text", "Lyon", models.Question{CorrectAnswer: `"Paris"`}, false},
		{"option index", "2", models.Question{CorrectAnswer: `2`, Options: []string{"a", "b", "c"}}, true},
		{"option text for index", "c", models.Question{CorrectAnswer: `2`, Options: []string{"a", "b", "c"}}, true},
		{"accepted list", "colour", models.Question{CorrectAnswer: `["color","colour"]`}, true},
		{"not in accepted list", "hue", models.Question{CorrectAnswer: `["color","colour"]`}, false},
		{"boolean", "true", models.Question{CorrectAnswer: `true`}, true},
		{"empty answer", "  ", models.Question{CorrectAnswer: `""`}, false},
		{"null answer", "x", models.Question{CorrectAnswer: `null`}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCorrect(tt.selected, tt.question))
		})
	}
}

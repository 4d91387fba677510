package game

import (
	"sync"

	"quiz-session-service/internal/models"
)

// roomRuntime is the per-room state that never goes into snapshots:
// authoritative quiz content, timers, chat and the event bus.
type roomRuntime struct {
	id          string
	quiz        *models.QuizData
	bus         *Broadcaster
	chat        *chatLog
	unsubscribe func()

	mu      sync.Mutex
	ticker  Timer
	tickGen uint64
	grace   map[string]Timer
}

func newRoomRuntime(id string, quiz *models.QuizData, chatLimit int) *roomRuntime {
	return &roomRuntime{
		id:          id,
		quiz:        quiz,
		bus:         NewBroadcaster(id),
		chat:        newChatLog(chatLimit),
		unsubscribe: func() {},
		grace:       make(map[string]Timer),
	}
}

// startTicker arms the countdown unless it is already running.
func (rt *roomRuntime) startTicker(clock Clock, fire func(gen uint64)) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.ticker != nil {
		return
	}
	rt.tickGen++
	gen := rt.tickGen
	rt.ticker = clock.AfterFunc(tickInterval, func() { fire(gen) })
}

// rearm schedules the next tick only if no stop or restart happened since gen was issued.
func (rt *roomRuntime) rearm(clock Clock, gen uint64, fire func(gen uint64)) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.ticker == nil || rt.tickGen != gen {
		return
	}
	rt.ticker = clock.AfterFunc(tickInterval, func() { fire(gen) })
}

func (rt *roomRuntime) tickCurrent(gen uint64) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.ticker != nil && rt.tickGen == gen
}

func (rt *roomRuntime) stopTicker() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.ticker != nil {
		rt.ticker.Stop()
		rt.ticker = nil
	}
	rt.tickGen++
}

func (rt *roomRuntime) setGrace(playerID string, t Timer) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if prev, ok := rt.grace[playerID]; ok {
		prev.Stop()
	}
	rt.grace[playerID] = t
}

func (rt *roomRuntime) cancelGrace(playerID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if t, ok := rt.grace[playerID]; ok {
		t.Stop()
		delete(rt.grace, playerID)
	}
}

func (rt *roomRuntime) stopAll() {
	rt.stopTicker()

	rt.mu.Lock()
	defer rt.mu.Unlock()
	for id, t := range rt.grace {
		t.Stop()
		delete(rt.grace, id)
	}
}

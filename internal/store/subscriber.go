package store

import (
	"sync"

	"quiz-session-service/internal/models"
)

const subscriberBuffer = 32

// subscriber delivers snapshots in commit order on its own goroutine. When
// the buffer is full the oldest pending snapshot is dropped: a newer snapshot
// always supersedes it.
type subscriber struct {
	fn    func(*models.Room)
	queue chan *models.Room
	done  chan struct{}
	once  sync.Once
}

func newSubscriber(fn func(*models.Room)) *subscriber {
	return &subscriber{
		fn:    fn,
		queue: make(chan *models.Room, subscriberBuffer),
		done:  make(chan struct{}),
	}
}

func (s *subscriber) offer(room *models.Room) {
	select {
	case s.queue <- room:
		return
	default:
	}

	select {
	case <-s.queue:
	default:
	}
	select {
	case s.queue <- room:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case room := <-s.queue:
			s.fn(room)
		}
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

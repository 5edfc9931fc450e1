package http

import (
	"log/slog"
	"sync"

	"github.com/UTNuclearRobotics/skiros2/internal/logging"
)

// AllTasks subscribes to the progress of every task.
const AllTasks = -1

// StreamManager fans progress messages out to the open streams.
type StreamManager struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[int]map[chan []byte]struct{} // task id -> streams
}

// NewStreamManager creates a stream manager without subscribers.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		logger:      logger,
		subscribers: make(map[int]map[chan []byte]struct{}),
	}
}

// Subscribe opens a stream for taskID, or for every task with AllTasks.
// The returned function closes it.
func (sm *StreamManager) Subscribe(taskID int) (<-chan []byte, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan []byte, 32)
	if _, ok := sm.subscribers[taskID]; !ok {
		sm.subscribers[taskID] = make(map[chan []byte]struct{})
	}
	sm.subscribers[taskID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[taskID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, taskID)
			}
		}
	}
}

// Broadcast sends msg to the streams of taskID and to the streams of every
// task. Streams that are full miss the message.
func (sm *StreamManager) Broadcast(taskID int, msg []byte) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	keys := []int{AllTasks}
	if taskID != AllTasks {
		keys = append(keys, taskID)
	}
	for _, key := range keys {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				sm.logger.Warn("stream buffer full, dropping progress", "task_id", taskID)
			}
		}
	}
}

// Len returns the number of open streams.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	n := 0
	for _, subs := range sm.subscribers {
		n += len(subs)
	}
	return n
}

package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
)

// DefaultSubscriberBuffer is the channel capacity given to subscribers.
const DefaultSubscriberBuffer = 64

func (m *Manager) observeProgress(id int, snap domain.Snapshot) {
	m.emit(id, snap)
}

// emit stores the snapshot as the latest progress of id and fans it out.
// Slow subscribers miss events instead of stalling the tick loop.
func (m *Manager) emit(id int, snap domain.Snapshot) {
	event := domain.ProgressEvent{
		TaskID:   id,
		Agent:    m.agent,
		Time:     time.Now(),
		Snapshot: snap,
	}

	m.progressMu.Lock()
	m.progress[id] = event
	for sid, ch := range m.subs {
		select {
		case ch <- event:
		default:
			m.logger.Warn("progress event dropped", "task_id", id, "subscriber", sid)
		}
	}
	m.progressMu.Unlock()

	if root, ok := snap.Root(); ok {
		m.logger.Debug("progress", "task_id", id, "state", root.State.String(), "code", root.Code, "msg", root.Message)
	}

	if m.publisher != nil {
		if err := m.publisher.Publish(context.Background(), event); err != nil {
			m.logger.Warn("progress publish failed", "task_id", id, "err", err)
		}
	}
}

// Progress returns the last progress event of id. Events outlive their
// task until the id is reused.
func (m *Manager) Progress(id int) (domain.ProgressEvent, error) {
	m.progressMu.RLock()
	defer m.progressMu.RUnlock()
	event, ok := m.progress[id]
	if !ok {
		return domain.ProgressEvent{}, fmt.Errorf("%w: %d", domain.ErrTaskNotFound, id)
	}
	return event, nil
}

// Subscribe returns a channel receiving every progress event from now on
// and a function that ends the subscription and closes the channel.
// A non-positive buffer uses DefaultSubscriberBuffer.
func (m *Manager) Subscribe(buffer int) (<-chan domain.ProgressEvent, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan domain.ProgressEvent, buffer)

	m.progressMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.progressMu.Unlock()

	cancel := func() {
		m.progressMu.Lock()
		defer m.progressMu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

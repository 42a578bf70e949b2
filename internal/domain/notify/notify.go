// Package notify carries pipeline events to loosely coupled listeners (cue
// player, history store, control API push). The bus is constructed in
// bootstrap and passed down; there is no package-level singleton.
package notify

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// Event topics.
const (
	EventSessionStarted   = "session:started"
	EventSessionRejected  = "session:rejected"
	EventSessionCancelled = "session:cancelled"
	EventTextFinal        = "text:final"
	EventPipelineError    = "pipeline:error"
	EventEngineSwapped    = "engine:swapped"
	EventHotkeyChanged    = "hotkey:changed"
)

// SessionEventData accompanies session lifecycle topics.
type SessionEventData struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

// TextEventData accompanies EventTextFinal.
type TextEventData struct {
	SessionID         string  `json:"session_id"`
	Text              string  `json:"text"`
	RawText           string  `json:"raw_text"`
	Engine            string  `json:"engine"`
	RefinementApplied bool    `json:"refinement_applied"`
	Fallback          bool    `json:"fallback"`
	AudioSeconds      float64 `json:"audio_seconds"`
	ElapsedMS         int64   `json:"elapsed_ms"`
}

// ErrorEventData accompanies EventPipelineError.
type ErrorEventData struct {
	SessionID string `json:"session_id"`
	Stage     string `json:"stage"`
	Message   string `json:"message"`
}

// Bus wraps a synchronous EventBus plus a worker pool for async delivery.
// Publish runs handlers inline; PublishAsync hands the event to a worker so
// hot paths (the gesture pipeline) never wait on listeners.
type Bus struct {
	bus      evbus.Bus
	workChan chan func()
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewBus creates a bus with the given number of delivery workers.
func NewBus(workers int) *Bus {
	if workers <= 0 {
		workers = 4
	}
	b := &Bus{
		bus:      evbus.New(),
		workChan: make(chan func(), 256),
		stopChan: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.stopChan:
			return
		case deliver := <-b.workChan:
			func() {
				defer func() {
					recover()
				}()
				deliver()
			}()
		}
	}
}

// Publish delivers an event synchronously.
func (b *Bus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

// PublishAsync queues an event for worker delivery. When the queue is full
// the event is dropped; listeners are advisory, the pipeline is not.
func (b *Bus) PublishAsync(topic string, args ...interface{}) {
	select {
	case b.workChan <- func() { b.bus.Publish(topic, args...) }:
	default:
	}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// Unsubscribe removes a handler.
func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// Close stops the delivery workers. Queued events are dropped.
func (b *Bus) Close() {
	b.stopOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
	})
}

package core

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine/containers"
)

// System internal event codes. Application should use codes beyond 255.
type EventCode int

const (
	// Shuts the application down on the next frame.
	EventCodeApplicationQuit EventCode = 0x01

	// Keyboard key pressed.
	/* Context usage:
	 * key := ctx.Data.(KeyEvent)
	 */
	EventCodeKeyPressed EventCode = 0x02

	// Keyboard key released.
	/* Context usage:
	 * key := ctx.Data.(KeyEvent)
	 */
	EventCodeKeyReleased EventCode = 0x03

	// Resized/resolution changed from the OS. Zero while minimized.
	/* Context usage:
	 * size := ctx.Data.(ResizeEvent)
	 */
	EventCodeResized EventCode = 0x08

	// Switch between windowed and fullscreen.
	EventCodeToggleFullscreen EventCode = 0x09

	MaxEventCode EventCode = 0xFF
)

// This should be more than enough codes...
const MaxMessageCodes = 16384

// Capacity of the queue drained by Dispatch.
const EventQueueSize = 256

type EventContext struct {
	Type   EventCode
	Sender interface{}
	Data   interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
	Alt     bool
}

type ResizeEvent struct {
	Width  uint32
	Height uint32
}

// Should return true if handled.
type FnOnEvent func(ctx EventContext, listener interface{}) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

/**
 * @brief Routes events to registered listeners. Fire delivers synchronously,
 * Post queues the event until the next Dispatch. Post may be called from any
 * goroutine; everything else belongs to the main thread.
 */
type EventSystem struct {
	registered map[EventCode][]*registeredEvent

	mu    sync.Mutex
	queue *containers.RingQueue[EventContext]
}

func NewEventSystem() *EventSystem {
	return &EventSystem{
		registered: make(map[EventCode][]*registeredEvent),
		queue:      containers.NewRingQueue[EventContext](EventQueueSize),
	}
}

/**
 * Register to listen for when events are sent with the provided code. A listener
 * registered twice for the same code is rejected.
 * @param code The event code to listen for.
 * @param listener A comparable listener instance, usually a pointer. Can be nil.
 * @param onEvent The callback to be invoked when the event code is fired.
 * @returns An error if the code is out of range or the listener is already registered.
 */
func (es *EventSystem) Register(code EventCode, listener interface{}, onEvent FnOnEvent) error {
	if code < 0 || code >= MaxMessageCodes {
		return errors.Newf("event code %d out of range", code)
	}
	if onEvent == nil {
		return errors.Newf("nil callback for event code %d", code)
	}
	for _, e := range es.registered[code] {
		if e.listener == listener {
			return errors.Newf("listener already registered for event code %d", code)
		}
	}
	es.registered[code] = append(es.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return nil
}

/**
 * Unregister from listening for when events are sent with the provided code.
 * @returns false if no matching registration was found.
 */
func (es *EventSystem) Unregister(code EventCode, listener interface{}) bool {
	events := es.registered[code]
	for i, e := range events {
		if e.listener == listener {
			es.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 * @returns true if handled, otherwise false.
 */
func (es *EventSystem) Fire(ctx EventContext) bool {
	for _, e := range es.registered[ctx.Type] {
		if e.callback(ctx, e.listener) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}

// Post queues ctx for the next Dispatch. It fails when the queue is full.
func (es *EventSystem) Post(ctx EventContext) error {
	es.mu.Lock()
	defer es.mu.Unlock()
	if err := es.queue.Enqueue(ctx); err != nil {
		return errors.Wrapf(err, "dropping event %d", ctx.Type)
	}
	return nil
}

// Dispatch fires every queued event in posting order and returns how many
// were delivered. Events posted by listeners during Dispatch wait for the
// next call.
func (es *EventSystem) Dispatch() int {
	es.mu.Lock()
	pending := make([]EventContext, 0, es.queue.Len())
	for !es.queue.IsEmpty() {
		ctx, _ := es.queue.Dequeue()
		pending = append(pending, ctx)
	}
	es.mu.Unlock()

	for _, ctx := range pending {
		es.Fire(ctx)
	}
	return len(pending)
}

// Shutdown drops every registration and queued event.
func (es *EventSystem) Shutdown() {
	es.mu.Lock()
	defer es.mu.Unlock()
	for !es.queue.IsEmpty() {
		_, _ = es.queue.Dequeue()
	}
	es.registered = make(map[EventCode][]*registeredEvent)
}

package player

import "sync"

// EventKind names a player event.
type EventKind int

const (
	EventLoadedMetadata EventKind = iota
	EventPlaying
	EventPlay
	EventPause
	EventSeeking
	EventSeeked
	EventTimeUpdate
	EventEnded
	EventResize
)

func (k EventKind) String() string {
	switch k {
	case EventLoadedMetadata:
		return "loadedmetadata"
	case EventPlaying:
		return "playing"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventSeeking:
		return "seeking"
	case EventSeeked:
		return "seeked"
	case EventTimeUpdate:
		return "timeupdate"
	case EventEnded:
		return "ended"
	case EventResize:
		return "resize"
	}
	return "unknown"
}

// Event is delivered to listeners. CurrentTime and Duration are set for
// timeupdate and loadedmetadata; Width and Height for loadedmetadata and
// resize.
type Event struct {
	Kind        EventKind
	CurrentTime float64
	Duration    float64
	Width       int
	Height      int
}

type listener struct {
	id int
	fn func(Event)
}

// emitter calls listeners synchronously, in subscription order, on the
// emitting goroutine. Listeners may call back into the player.
type emitter struct {
	mu        sync.RWMutex
	next      int
	listeners map[EventKind][]listener
}

func newEmitter() *emitter {
	return &emitter{listeners: make(map[EventKind][]listener)}
}

func (e *emitter) on(kind EventKind, fn func(Event)) func() {
	e.mu.Lock()
	e.next++
	id := e.next
	e.listeners[kind] = append(e.listeners[kind], listener{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			ls := e.listeners[kind]
			for i, l := range ls {
				if l.id == id {
					e.listeners[kind] = append(ls[:i:i], ls[i+1:]...)
					return
				}
			}
		})
	}
}

func (e *emitter) emit(ev Event) {
	e.mu.RLock()
	ls := e.listeners[ev.Kind]
	e.mu.RUnlock()
	for _, l := range ls {
		l.fn(ev)
	}
}

func (e *emitter) clear() {
	e.mu.Lock()
	e.listeners = make(map[EventKind][]listener)
	e.mu.Unlock()
}

// On subscribes fn to kind and returns a function that unsubscribes it.
func (p *Player) On(kind EventKind, fn func(Event)) (off func()) {
	return p.events.on(kind, fn)
}

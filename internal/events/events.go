// Package events carries lifecycle notifications between the playlist and the
// subsystems that mirror it (voice output, play-state reporting, radio mode,
// chat views). A Dispatcher belongs to exactly one session.
package events

import (
	"sync"
)

// Topic names a lifecycle event.
type Topic string

const (
	PlaylistEnqueued Topic = "controls.playlist.tracks.enqueued"
	PlaylistNext     Topic = "controls.playlist.tracks.next"
	PlaylistPrevious Topic = "controls.playlist.tracks.previous"
	PlaylistClear    Topic = "controls.playlist.tracks.clear"
	PlaylistShuffle  Topic = "controls.playlist.tracks.shuffle"

	TrackFinish      Topic = "internal.audio.track.finish"
	TrackAnnounce    Topic = "internal.audio.track.announce"
	TrackNoNextTrack Topic = "internal.audio.track.no-next-track"

	VoicePause  Topic = "internal.voice.controls.pause"
	VoiceStop   Topic = "internal.voice.controls.stop"
	VoiceVolume Topic = "internal.voice.controls.volume"
)

// Event is anything published on a Dispatcher.
type Event interface {
	Topic() Topic
}

// Handler consumes one event. Handlers run on the publishing goroutine and
// must not block for long; slow work belongs in its own goroutine.
type Handler func(Event)

// Sink receives events from an emitter.
type Sink func(Event)

// Discard is a Sink that drops everything.
func Discard(Event) {}

type subscription struct {
	id      uint64
	handler Handler
}

// Dispatcher fans events out to topic subscribers in subscription order.
type Dispatcher struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Topic][]subscription
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Topic][]subscription),
	}
}

// Subscribe registers h for topic and returns a function that removes it.
func (d *Dispatcher) Subscribe(topic Topic, h Handler) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.handlers[topic] = append(d.handlers[topic], subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(topic, id) })
	}
}

func (d *Dispatcher) remove(topic Topic, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.handlers[topic]
	for i, s := range subs {
		if s.id == id {
			d.handlers[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(d.handlers[topic]) == 0 {
		delete(d.handlers, topic)
	}
}

// Publish delivers e to every subscriber of its topic, synchronously.
func (d *Dispatcher) Publish(e Event) {
	d.mu.RLock()
	subs := make([]subscription, len(d.handlers[e.Topic()]))
	copy(subs, d.handlers[e.Topic()])
	d.mu.RUnlock()

	for _, s := range subs {
		s.handler(e)
	}
}

// Subscribers returns how many handlers listen on topic.
func (d *Dispatcher) Subscribers(topic Topic) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[topic])
}

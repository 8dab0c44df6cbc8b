// Package observable provides a named-event observer list with
// explicit unsubscription.
package observable

import (
	"sort"
	"sync"
)

// Wildcard is the event name whose handlers are fired for every event
const Wildcard = "*"

// Handler is called with the payload of a fired event
type Handler func(payload interface{})

type listener struct {
	id        uint64
	eventName string
	handler   Handler
}

// Observable holds a list of handlers per event name. It is safe
// for concurrent use. Handlers are fired synchronously, in the
// order they subscribed.
type Observable struct {
	mutex     sync.RWMutex
	nextID    uint64
	listeners map[uint64]*listener
}

// New creates a new Observable
func New() *Observable {
	return &Observable{
		listeners: make(map[uint64]*listener),
	}
}

// Subscribe registers handler for eventName and returns an id
// that can be passed to Unsubscribe
func (o *Observable) Subscribe(eventName string, handler Handler) uint64 {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.nextID++
	id := o.nextID
	o.listeners[id] = &listener{id: id, eventName: eventName, handler: handler}
	return id
}

// Unsubscribe removes the handler with the given id. Unknown ids are ignored.
func (o *Observable) Unsubscribe(id uint64) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	delete(o.listeners, id)
}

// Fire calls every handler subscribed to eventName or to Wildcard.
// The handlers are collected before any of them runs, so handlers
// may subscribe or unsubscribe without deadlocking.
func (o *Observable) Fire(eventName string, payload interface{}) {
	for _, handler := range o.handlersOf(eventName) {
		handler(payload)
	}
}

// Count returns the number of handlers subscribed to eventName
func (o *Observable) Count(eventName string) int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	count := 0
	for _, l := range o.listeners {
		if l.eventName == eventName {
			count++
		}
	}
	return count
}

func (o *Observable) handlersOf(eventName string) []Handler {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	matching := make([]*listener, 0, len(o.listeners))
	for _, l := range o.listeners {
		if l.eventName == eventName || l.eventName == Wildcard {
			matching = append(matching, l)
		}
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].id < matching[j].id })

	handlers := make([]Handler, len(matching))
	for i, l := range matching {
		handlers[i] = l.handler
	}
	return handlers
}

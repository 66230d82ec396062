// Package hub tracks which connections belong to which broadcast groups and
// fans events out to them. Membership lives only in process memory; it is
// rebuilt from scratch after a restart.
package hub

import (
	"strings"
	"sync"
)

// AdminGroup is the shared group of all staff dashboard connections.
const AdminGroup = "admin"

const sessionPrefix = "session:"

// SessionGroup returns the group key for one session's participants.
func SessionGroup(sessionID string) string {
	return sessionPrefix + sessionID
}

// SessionID extracts the session identifier from a session group key.
func SessionID(group string) (string, bool) {
	if !strings.HasPrefix(group, sessionPrefix) {
		return "", false
	}
	return strings.TrimPrefix(group, sessionPrefix), true
}

// Envelope is the wire frame shared by every broadcast event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Sink receives envelopes destined for a single connection. Enqueue must
// never block; it reports false when the envelope was dropped because the
// sink is closed or saturated.
type Sink interface {
	Enqueue(Envelope) bool
}

// Hub is the in-process group membership registry and broadcast router.
// A single mutex guards both directions of the membership index; the event
// rate of a support chat never makes that contended.
type Hub struct {
	mu      sync.Mutex
	members map[string]map[Sink]struct{}
	groups  map[Sink]map[string]struct{}
}

// New returns an empty hub.
func New() *Hub {
	return &Hub{
		members: make(map[string]map[Sink]struct{}),
		groups:  make(map[Sink]map[string]struct{}),
	}
}

// Join adds the sink to a group. Joining a group twice is a no-op.
func (h *Hub) Join(s Sink, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.members[group]; !ok {
		h.members[group] = make(map[Sink]struct{})
	}
	h.members[group][s] = struct{}{}

	if _, ok := h.groups[s]; !ok {
		h.groups[s] = make(map[string]struct{})
	}
	h.groups[s][group] = struct{}{}
}

// Leave removes the sink from a group and returns the number of members
// remaining. Removal and the count are one atomic step so that two
// connections of the same session disconnecting at the same time observe
// zero exactly once.
func (h *Hub) Leave(s Sink, group string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.members[group]
	if !ok {
		return 0
	}

	delete(members, s)
	if set, ok := h.groups[s]; ok {
		delete(set, group)
		if len(set) == 0 {
			delete(h.groups, s)
		}
	}

	remaining := len(members)
	if remaining == 0 {
		delete(h.members, group)
	}
	return remaining
}

// Groups returns the group keys the sink currently belongs to.
func (h *Hub) Groups(s Sink) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.groups[s]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(set))
	for group := range set {
		keys = append(keys, group)
	}
	return keys
}

// Members returns a snapshot of the group's current sinks. Unknown groups
// are empty sets.
func (h *Hub) Members(group string) []Sink {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot(group)
}

// Send delivers the event to every current member of the group. Delivery is
// best-effort and at-most-once: a saturated or closed member is dropped
// silently, and a recipient that is absent at call time never sees the
// event. Per-recipient ordering follows the caller's Send order.
func (h *Hub) Send(group, event string, data any) {
	h.mu.Lock()
	sinks := h.snapshot(group)
	h.mu.Unlock()

	env := Envelope{Event: event, Data: data}
	for _, s := range sinks {
		s.Enqueue(env)
	}
}

// SendTo delivers an event to a single sink, bypassing group membership.
// Used for acknowledgements and per-connection errors.
func (h *Hub) SendTo(s Sink, event string, data any) {
	s.Enqueue(Envelope{Event: event, Data: data})
}

func (h *Hub) snapshot(group string) []Sink {
	set, ok := h.members[group]
	if !ok {
		return nil
	}
	sinks := make([]Sink, 0, len(set))
	for s := range set {
		sinks = append(sinks, s)
	}
	return sinks
}

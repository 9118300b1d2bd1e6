package orchestrator

import (
	"container/heap"
	"time"
)

// EventKind enumerates the orchestrator's internal event types. Order here
// matters: kindPriority below encodes the fixed same-timestamp tie-break
// of §5 (ORDER_ARRIVAL → ... → SIMULATION_END).
type EventKind string

const (
	EventOrderArrival     EventKind = "ORDER_ARRIVAL"
	EventBlockageStart    EventKind = "BLOCKAGE_START"
	EventBlockageEnd      EventKind = "BLOCKAGE_END"
	EventMaintenanceEnd   EventKind = "MAINTENANCE_END"
	EventIncidentResolve  EventKind = "INCIDENT_RESOLVE"
	EventIncidentTrigger  EventKind = "INCIDENT_TRIGGER"
	EventMaintenanceStart EventKind = "MAINTENANCE_START"
	EventReplan           EventKind = "REPLAN"
	EventSimulationEnd    EventKind = "SIMULATION_END"
)

var kindPriority = map[EventKind]int{
	EventOrderArrival:     0,
	EventBlockageStart:    1,
	EventBlockageEnd:      2,
	EventMaintenanceEnd:   3,
	EventIncidentResolve:  4,
	EventIncidentTrigger:  5,
	EventMaintenanceStart: 6,
	EventReplan:           7,
	EventSimulationEnd:    8,
}

// Event is one entry in the orchestrator's time-ordered queue.
type Event struct {
	At       time.Time
	Kind     EventKind
	EntityID string
	Payload  interface{}

	index int
}

// eventQueue is a min-heap ordered by (At, kindPriority, EntityID) — the
// exact same shape as the pathfinder's container/heap open set (§4.2),
// just ordered on simulation time instead of path cost.
type eventQueue []*Event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if !a.At.Equal(b.At) {
		return a.At.Before(b.At)
	}
	if kindPriority[a.Kind] != kindPriority[b.Kind] {
		return kindPriority[a.Kind] < kindPriority[b.Kind]
	}
	return a.EntityID < b.EntityID
}
func (q eventQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *eventQueue) Push(x interface{}) {
	e := x.(*Event)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[0 : n-1]
	return item
}

// EventQueue is the orchestrator's public-facing wrapper over the heap.
type EventQueue struct {
	q eventQueue
}

// NewEventQueue returns an empty queue.
func NewEventQueue() *EventQueue {
	q := &EventQueue{q: eventQueue{}}
	heap.Init(&q.q)
	return q
}

// Push enqueues an event.
func (eq *EventQueue) Push(e *Event) { heap.Push(&eq.q, e) }

// Pop removes and returns the earliest event, or ok=false if empty.
func (eq *EventQueue) Pop() (*Event, bool) {
	if eq.q.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&eq.q).(*Event), true
}

// PeekTime returns the timestamp of the earliest event, or ok=false if
// empty.
func (eq *EventQueue) PeekTime() (time.Time, bool) {
	if eq.q.Len() == 0 {
		return time.Time{}, false
	}
	return eq.q[0].At, true
}

// Len reports the number of queued events.
func (eq *EventQueue) Len() int { return eq.q.Len() }

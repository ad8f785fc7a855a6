// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package login

import (
	"log/slog"
	"time"
)

// CallbackID identifies one pending callback.
type CallbackID uint64

// PendingCallbacks schedules deferred, cancelable work items for handlers
// that must resume after an external round trip. A timer posts an
// ExecuteCallback event back into the inbound queue, so the callback runs
// on the dispatch loop like everything else.
//
// The map is only touched from the dispatch loop; the timer goroutine does
// nothing but send the event.
type PendingCallbacks struct {
	queue   chan<- Event
	nextID  CallbackID
	pending map[CallbackID]pendingCallback
}

type pendingCallback struct {
	owner Peer
	fn    func()
}

// NewPendingCallbacks creates a registry posting into queue.
func NewPendingCallbacks(queue chan<- Event) *PendingCallbacks {
	return &PendingCallbacks{
		queue:   queue,
		pending: make(map[CallbackID]pendingCallback),
	}
}

// Schedule registers fn to run after delay, owned by owner. The returned id
// can be executed at most once.
func (pc *PendingCallbacks) Schedule(owner Peer, delay time.Duration, fn func()) CallbackID {
	pc.nextID++
	id := pc.nextID
	pc.pending[id] = pendingCallback{owner: owner, fn: fn}

	time.AfterFunc(delay, func() {
		pc.queue <- ExecuteCallback{CallbackID: id}
	})
	return id
}

// Execute runs and removes the callback for id. An unknown id is a no-op:
// the owner may have disconnected between the timer firing and the event
// being dequeued, and that race is benign.
func (pc *PendingCallbacks) Execute(id CallbackID) {
	cb, ok := pc.pending[id]
	if !ok {
		slog.Debug("callback no longer pending", "callback_id", id)
		return
	}
	delete(pc.pending, id)
	cb.fn()
}

// RemoveReceiver cancels every callback owned by peer. Must be called on
// each disconnect before the peer is discarded, so a late Execute cannot
// touch freed state.
func (pc *PendingCallbacks) RemoveReceiver(peer Peer) {
	for id, cb := range pc.pending {
		if cb.owner == peer {
			delete(pc.pending, id)
		}
	}
}

// Len reports the number of pending callbacks.
func (pc *PendingCallbacks) Len() int {
	return len(pc.pending)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

// Package social tracks friend lists and presence for connected players.
package social

import (
	"sort"
	"strings"
	"sync"
)

// Network is the presence hub. Every connected player's Friends handle is
// attached to it for the lifetime of the connection; announced display
// names make the player visible to others' friend queries.
type Network struct {
	mu      sync.RWMutex
	members map[*Friends]struct{}
	online  map[string]*Friends
}

// NewNetwork creates an empty presence network.
func NewNetwork() *Network {
	return &Network{
		members: make(map[*Friends]struct{}),
		online:  make(map[string]*Friends),
	}
}

// Online reports whether a player announced under name is present.
func (n *Network) Online(name string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.online[strings.ToLower(name)]
	return ok
}

// Members reports the number of attached handles.
func (n *Network) Members() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.members)
}

func (n *Network) attach(f *Friends) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.members[f] = struct{}{}
}

func (n *Network) announce(f *Friends, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if f.announced != "" {
		delete(n.online, f.announced)
	}
	f.announced = strings.ToLower(name)
	n.online[f.announced] = f
}

func (n *Network) detach(f *Friends) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.members, f)
	if f.announced != "" {
		delete(n.online, f.announced)
		f.announced = ""
	}
}

// Friends is one player's friend list plus their presence handle on the
// network. A handle starts detached; the coordinator attaches it on connect
// and detaches it on disconnect.
type Friends struct {
	network   *Network
	announced string

	mu    sync.RWMutex
	names map[string]struct{}
}

// NewFriends creates a detached friends handle with an empty list.
func NewFriends() *Friends {
	return &Friends{names: make(map[string]struct{})}
}

// Attach joins the handle to the network.
func (f *Friends) Attach(n *Network) {
	f.network = n
	n.attach(f)
}

// Announce publishes the owner's display name for presence queries. Called
// after login, and again if the display name ever changes.
func (f *Friends) Announce(name string) {
	if f.network == nil {
		return
	}
	f.network.announce(f, name)
}

// Detach leaves the network and withdraws any announced name. Safe to call
// on an already detached handle.
func (f *Friends) Detach() {
	if f.network == nil {
		return
	}
	f.network.detach(f)
	f.network = nil
}

// Add records name as a friend.
func (f *Friends) Add(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names[strings.ToLower(name)] = struct{}{}
}

// Remove forgets name.
func (f *Friends) Remove(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.names, strings.ToLower(name))
}

// Has reports whether name is on the friend list.
func (f *Friends) Has(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.names[strings.ToLower(name)]
	return ok
}

// OnlineFriends returns the sorted subset of the friend list currently
// announced on the network.
func (f *Friends) OnlineFriends() []string {
	if f.network == nil {
		return nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	var online []string
	for name := range f.names {
		if f.network.Online(name) {
			online = append(online, name)
		}
	}
	sort.Strings(online)
	return online
}

// Copyright 2025-2026 The ai-token-exo-bridge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package priority

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrRankTaken is returned when a rank is already held by another member.
	ErrRankTaken = errors.New("priority rank already taken")
	// ErrInvalidRank is returned for negative ranks.
	ErrInvalidRank = errors.New("priority rank must not be negative")
)

// Member is a named provider at a rank.
type Member struct {
	Name string `json:"name" yaml:"name"`
	Rank int    `json:"rank" yaml:"rank"`
}

// Group is an ordered set of providers. The zero value is an empty group
// ready to use. A Group is safe for concurrent use.
type Group struct {
	mu sync.RWMutex
	// +checklocks:mu
	ranks map[string]int
	// +checklocks:mu
	owners map[int]string
}

// NewGroup creates a group holding the given members. It fails if two of
// them share a name or a rank.
func NewGroup(members ...Member) (*Group, error) {
	var group Group
	for _, member := range members {
		group.mu.Lock()
		_, exists := group.ranks[member.Name]
		group.mu.Unlock()
		if exists {
			return nil, fmt.Errorf("duplicate member %q", member.Name)
		}
		if err := group.Set(member.Name, member.Rank); err != nil {
			return nil, err
		}
	}
	return &group, nil
}

// Set places name at rank, moving it if it is already a member. It returns
// an error wrapping ErrRankTaken if another member holds the rank.
func (g *Group) Set(name string, rank int) error {
	if rank < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRank, rank)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ranks == nil {
		g.ranks = map[string]int{}
		g.owners = map[int]string{}
	}
	if owner, ok := g.owners[rank]; ok && owner != name {
		return fmt.Errorf("%w: rank %d is held by %q", ErrRankTaken, rank, owner)
	}
	if previous, ok := g.ranks[name]; ok {
		delete(g.owners, previous)
	}
	g.ranks[name] = rank
	g.owners[rank] = name
	return nil
}

// Remove drops name from the group and reports whether it was a member.
func (g *Group) Remove(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	rank, ok := g.ranks[name]
	if !ok {
		return false
	}
	delete(g.ranks, name)
	delete(g.owners, rank)
	return true
}

// Rank returns the rank of name.
func (g *Group) Rank(name string) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rank, ok := g.ranks[name]
	return rank, ok
}

// Len returns the number of members.
func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.ranks)
}

// Members returns the members sorted by ascending rank.
func (g *Group) Members() []Member {
	g.mu.RLock()
	members := make([]Member, 0, len(g.ranks))
	for name, rank := range g.ranks {
		members = append(members, Member{Name: name, Rank: rank})
	}
	g.mu.RUnlock()
	slices.SortFunc(members, func(a, b Member) int {
		return cmp.Compare(a.Rank, b.Rank)
	})
	return members
}

// Ordered returns the member names sorted by ascending rank.
func (g *Group) Ordered() []string {
	members := g.Members()
	names := make([]string, len(members))
	for i, member := range members {
		names[i] = member.Name
	}
	return names
}

// First returns the lowest ranked member for which usable returns true.
func (g *Group) First(usable func(name string) bool) (string, bool) {
	for _, name := range g.Ordered() {
		if usable(name) {
			return name, true
		}
	}
	return "", false
}

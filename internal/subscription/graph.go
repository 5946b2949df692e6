// Package subscription implements the directed follower graph on top of the
// store, with the domain rules of the protocol: edges only between known
// accounts, set semantics, no self-edge.
package subscription

import (
	"time"

	"github.com/edgarogh/twiiiiter/internal/database"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
)

// Result mirrors the wire-level SUBSCRIBE_RESULT outcomes.
type Result byte

const (
	Ok Result = iota
	NotFound
	Unchanged
)

// Graph answers subscribe/unsubscribe/list requests. Accounts are never
// deleted, so positive existence lookups are cached in an LRU; negative
// lookups always hit the store.
type Graph struct {
	store database.Store
	known *expirable.LRU[string, struct{}]
}

func NewGraph(store database.Store) *Graph {
	return &Graph{
		store: store,
		known: expirable.NewLRU[string, struct{}](256, nil, time.Hour),
	}
}

func (g *Graph) knownAccount(name string) (bool, error) {
	if _, ok := g.known.Get(name); ok {
		return true, nil
	}
	exists, err := g.store.AccountExists(name)
	if err != nil {
		return false, errors.Wrap(err, "account lookup failed")
	}
	if exists {
		g.known.Add(name, struct{}{})
	}
	return exists, nil
}

// Subscribe adds the edge follower->followee. The followee must have joined
// at least once; following yourself is rejected the same way as following a
// stranger. The new edge's delivery cursor is left absent, which reads as
// "nothing yet delivered".
func (g *Graph) Subscribe(follower, followee string) (Result, error) {
	if follower == followee {
		return NotFound, nil
	}
	exists, err := g.knownAccount(followee)
	if err != nil {
		return NotFound, err
	}
	if !exists {
		return NotFound, nil
	}
	changed, err := g.store.Follow(follower, followee)
	if err != nil {
		return NotFound, errors.Wrap(err, "follow failed")
	}
	if !changed {
		return Unchanged, nil
	}
	return Ok, nil
}

// Unsubscribe removes the edge follower->followee and its delivery cursor.
func (g *Graph) Unsubscribe(follower, followee string) (Result, error) {
	exists, err := g.knownAccount(followee)
	if err != nil {
		return NotFound, err
	}
	if !exists {
		return NotFound, nil
	}
	changed, err := g.store.Unfollow(follower, followee)
	if err != nil {
		return NotFound, errors.Wrap(err, "unfollow failed")
	}
	if !changed {
		return Unchanged, nil
	}
	if err := g.store.DeleteCursor(follower, followee); err != nil {
		return NotFound, errors.Wrap(err, "delete cursor failed")
	}
	return Ok, nil
}

// Followees lists the accounts the follower currently follows.
func (g *Graph) Followees(follower string) ([]string, error) {
	names, err := g.store.ListFollowees(follower)
	return names, errors.Wrap(err, "list followees failed")
}

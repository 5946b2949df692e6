package database

import "sync"

type pair struct {
	follower string
	followee string
}

// MemoryStore is an in-process Store used by tests and by the "memory"
// backend. A single RWMutex covers all tables; appends to one author's log
// are serialized by it, which keeps sequence numbers gapless.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]int64
	follows  map[pair]struct{}
	messages map[string][]StoredMessage
	cursors  map[pair]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]int64),
		follows:  make(map[pair]struct{}),
		messages: make(map[string][]StoredMessage),
		cursors:  make(map[pair]uint64),
	}
}

func (ms *MemoryStore) SaveAccount(name string, lastOnline int64) error {
	if name == "" {
		return UsernameEmptyError
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.accounts[name] = lastOnline
	return nil
}

func (ms *MemoryStore) AccountExists(name string) (bool, error) {
	if name == "" {
		return false, UsernameEmptyError
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	_, ok := ms.accounts[name]
	return ok, nil
}

func (ms *MemoryStore) Follow(follower, followee string) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	edge := pair{follower, followee}
	if _, ok := ms.follows[edge]; ok {
		return false, nil
	}
	ms.follows[edge] = struct{}{}
	return true, nil
}

func (ms *MemoryStore) Unfollow(follower, followee string) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	edge := pair{follower, followee}
	if _, ok := ms.follows[edge]; !ok {
		return false, nil
	}
	delete(ms.follows, edge)
	return true, nil
}

func (ms *MemoryStore) ListFollowees(follower string) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	var names []string
	for edge := range ms.follows {
		if edge.follower == follower {
			names = append(names, edge.followee)
		}
	}
	return names, nil
}

func (ms *MemoryStore) ListFollowers(followee string) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	var names []string
	for edge := range ms.follows {
		if edge.followee == followee {
			names = append(names, edge.follower)
		}
	}
	return names, nil
}

func (ms *MemoryStore) AppendMessage(author string, date int64, body []byte) (uint64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	log := ms.messages[author]
	seq := uint64(len(log) + 1)
	ms.messages[author] = append(log, StoredMessage{
		Author: author,
		Seq:    seq,
		Date:   date,
		Body:   append([]byte(nil), body...),
	})
	return seq, nil
}

func (ms *MemoryStore) MessagesAfter(author string, after uint64, limit int) ([]StoredMessage, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	log := ms.messages[author]
	// positions are 1-based and dense, so the slice offset is direct
	if after >= uint64(len(log)) {
		return nil, nil
	}
	tail := log[after:]
	if len(tail) > limit {
		tail = tail[:limit]
	}
	return append([]StoredMessage(nil), tail...), nil
}

func (ms *MemoryStore) GetCursor(follower, followee string) (uint64, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.cursors[pair{follower, followee}], nil
}

func (ms *MemoryStore) SetCursor(follower, followee string, position uint64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.cursors[pair{follower, followee}] = position
	return nil
}

func (ms *MemoryStore) DeleteCursor(follower, followee string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.cursors, pair{follower, followee})
	return nil
}

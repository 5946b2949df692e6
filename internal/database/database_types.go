package database

import "errors"

// Collection names of the MongoDB backend.
const (
	AccountCollectionName   = "accounts"
	FollowingCollectionName = "followings"
	MessageCollectionName   = "messages"
	CursorCollectionName    = "cursors"
	CounterCollectionName   = "counters"
)

var UsernameEmptyError = errors.New("username is empty")

// Account is a durable identity. An account is created on the first
// successful join and never deleted; LastOnline is bookkeeping updated on
// login and logout.
type Account struct {
	Name       string `bson:"name"`
	LastOnline int64  `bson:"last_online"`
}

// Following is one directed subscription edge.
type Following struct {
	Follower string `bson:"follower"`
	Followee string `bson:"followee"`
}

// StoredMessage is one published message. Seq is the position in the
// author's log, starting at 1; it is the ordering key, Date is
// informational (microseconds since the epoch).
type StoredMessage struct {
	Author string `bson:"author"`
	Seq    uint64 `bson:"seq"`
	Date   int64  `bson:"date"`
	Body   []byte `bson:"body"`
}

// DeliveryCursor marks the last message of Followee already delivered to
// Follower, by position in the followee's log. A missing cursor reads as
// position 0: nothing delivered yet.
type DeliveryCursor struct {
	Follower string `bson:"follower"`
	Followee string `bson:"followee"`
	Position uint64 `bson:"position"`
}

// Store is the durable state behind the server: the account table, the
// subscription graph, the per-author message logs and the delivery cursors.
// Implementations must keep appends to a single author's log serialized so
// that sequence numbers are gapless and ordered; appends by different
// authors may run concurrently.
type Store interface {
	// SaveAccount creates the account if needed and records its
	// last-online timestamp.
	SaveAccount(name string, lastOnline int64) error
	AccountExists(name string) (bool, error)

	// Follow adds the edge follower->followee. It reports false if the
	// edge already existed. Unfollow removes it and reports false if it
	// did not exist. Neither checks that the accounts exist.
	Follow(follower, followee string) (bool, error)
	Unfollow(follower, followee string) (bool, error)
	ListFollowees(follower string) ([]string, error)
	ListFollowers(followee string) ([]string, error)

	// AppendMessage appends to the author's log and returns the position
	// of the new message.
	AppendMessage(author string, date int64, body []byte) (uint64, error)
	// MessagesAfter returns up to limit messages of the author strictly
	// after the given position, in append order.
	MessagesAfter(author string, after uint64, limit int) ([]StoredMessage, error)

	GetCursor(follower, followee string) (uint64, error)
	SetCursor(follower, followee string, position uint64) error
	DeleteCursor(follower, followee string) error
}

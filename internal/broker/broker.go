// Package broker owns the publish path: appending a message to its author's
// durable log, then fanning it out to every live session that should see it.
package broker

import (
	"time"

	"github.com/edgarogh/twiiiiter/internal/connection"
	"github.com/edgarogh/twiiiiter/internal/database"
	"github.com/edgarogh/twiiiiter/internal/logger"
	"github.com/pkg/errors"
)

// Broker coordinates live fan-out over the live-session table. It never
// blocks on a recipient: Push on a session is required to be non-blocking,
// and a follower with no live session is simply skipped, its delivery
// cursor untouched, so the message is recovered by catch-up replay on its
// next connection.
type Broker struct {
	store   database.Store
	manager *connection.Manager
}

func NewBroker(store database.Store, manager *connection.Manager) *Broker {
	return &Broker{store: store, manager: manager}
}

// Publish appends the message to the author's log and delivers it to the
// author's own live session and to every live follower. The author always
// receives their own message; self-follow is implicit, not a graph edge.
func (b *Broker) Publish(author string, body []byte) error {
	date := time.Now().UnixMicro()
	seq, err := b.store.AppendMessage(author, date, body)
	if err != nil {
		return errors.Wrap(err, "append message failed")
	}

	msg := database.StoredMessage{Author: author, Seq: seq, Date: date, Body: body}

	followers, err := b.store.ListFollowers(author)
	if err != nil {
		return errors.Wrap(err, "list followers failed")
	}

	delivered := 0
	for _, name := range append(followers, author) {
		if receiver, ok := b.manager.Get(name); ok {
			receiver.Push(msg)
			delivered++
		}
	}
	logger.DebugF("[%s] Fan-out of message %d reached %d live sessions", author, seq, delivered)
	return nil
}

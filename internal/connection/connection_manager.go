// Package connection tracks live sessions: the binding of a claimed
// username to the connection currently holding it.
package connection

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"

	"github.com/edgarogh/twiiiiter/internal/database"
	"github.com/edgarogh/twiiiiter/internal/logger"
)

// Receiver is one live, authenticated session as seen by the broker and the
// server. Push hands over a freshly published message for delivery; it must
// not block on the receiver's peer. Closing asks the session to send
// Kick(Closing) and shut down.
type Receiver interface {
	Push(msg database.StoredMessage)
	Closing()
}

// Manager enforces at-most-one-live-session-per-username. Claims are
// atomic; a username becomes claimable again the moment its session
// releases it.
type Manager struct {
	connections sync.Map
}

func NewManager() *Manager {
	return &Manager{}
}

// Claim binds the username to the receiver. It reports false if another
// live session already holds the name.
func (cm *Manager) Claim(username string, receiver Receiver) bool {
	_, loaded := cm.connections.LoadOrStore(username, receiver)
	if loaded {
		return false
	}
	logger.InfoF("Client %s connected", username)
	return true
}

// Release unbinds the username, but only if it is still bound to this
// receiver. A session that lost a race with its own replacement must not
// evict the replacement.
func (cm *Manager) Release(username string, receiver Receiver) {
	if cm.connections.CompareAndDelete(username, receiver) {
		logger.InfoF("Client %s disconnected", username)
	}
}

// Get returns the live session holding the username, if any.
func (cm *Manager) Get(username string) (Receiver, bool) {
	if value, ok := cm.connections.Load(username); ok {
		return value.(Receiver), true
	}
	return nil, false
}

// CloseAll asks every live session to shut down. Used on server shutdown.
func (cm *Manager) CloseAll() {
	cm.connections.Range(func(_, value any) bool {
		value.(Receiver).Closing()
		return true
	})
}

func IsNetClosedError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	ok := errors.As(err, &opErr)
	return ok && opErr.Timeout()
}

func HandleReadError(connID string, err error) {
	switch {
	case errors.Is(err, io.EOF):
		logger.InfoF("[%s] Client close connection", connID)
	case os.IsTimeout(err):
		logger.WarnF("[%s] Reading timeout", connID)
	default:
		logger.ErrorF("[%s] Error occured while reading frame, details: %v", connID, err)
	}
}

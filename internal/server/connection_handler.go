package server

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/edgarogh/twiiiiter/internal/connection"
	"github.com/edgarogh/twiiiiter/internal/database"
	"github.com/edgarogh/twiiiiter/internal/logger"
	"github.com/edgarogh/twiiiiter/internal/protocol"
	"github.com/edgarogh/twiiiiter/internal/subscription"
)

type sessionState byte

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticated
)

// How many messages one catch-up scan pulls from the store at a time.
const replayBatchSize = 64

// How many outbound items a session may have in flight. A live recipient
// whose buffer overflows is treated as unreachable and disconnected; it
// recovers the backlog by replay on its next connection.
const outboxSize = 256

// outboundItem is one unit of the session's outbound stream: either a
// pre-encoded response frame, or a message push that still has to go
// through the delivery filter.
type outboundItem struct {
	frame []byte
	msg   *database.StoredMessage
}

// ConnectionHandler is the per-connection session state machine. The read
// loop decodes and dispatches request frames; a single writer goroutine
// owns the outbound stream, so responses and broker pushes are serialized
// without reordering. Message delivery (cursor filtering and advancing) is
// done by the writer, which keeps all cursor state single-threaded.
type ConnectionHandler struct {
	conn   net.Conn
	connID string
	server *Server

	username string
	state    sessionState

	mu        sync.Mutex
	closed    bool
	replaying bool
	pending   []database.StoredMessage
	outbox    chan outboundItem

	// maxDelivered is touched only by the writer goroutine: highest log
	// position delivered per author on this session, deduplicating the
	// overlap between catch-up replay and live pushes.
	maxDelivered map[string]uint64
}

func newConnectionHandler(conn net.Conn, connID string, server *Server) *ConnectionHandler {
	return &ConnectionHandler{
		conn:         conn,
		connID:       connID,
		server:       server,
		outbox:       make(chan outboundItem, outboxSize),
		maxDelivered: make(map[string]uint64),
	}
}

func (c *ConnectionHandler) handleConnection() {
	defer func() {
		logger.DebugF("[%s] Connection closed", c.connID)
		if c.username != "" {
			c.server.manager.Release(c.username, c)
			if err := c.server.store.SaveAccount(c.username, time.Now().UnixMicro()); err != nil {
				logger.WarnF("[%s] Fail to record logout time, details: %v", c.connID, err)
			}
		}
	}()

	go c.writeLoop()

	frame := make([]byte, protocol.FrameSize)
	for {
		if _, err := io.ReadFull(c.conn, frame); err != nil {
			connection.HandleReadError(c.connID, err)
			c.close(nil)
			return
		}

		packet, err := protocol.DecodeClientPacket(frame)
		if err != nil {
			logger.WarnF("[%s] Invalid frame sent by client, details: %v", c.connID, err)
			c.kickProtocolError()
			return
		}

		logger.DebugF("[%s] Receive %s frame", c.connID, packet.Type)

		if !c.dispatch(packet) {
			return
		}
	}
}

// dispatch runs one request. It reports false when the connection must not
// read any further frames.
func (c *ConnectionHandler) dispatch(packet *protocol.ClientPacket) bool {
	if c.state == stateUnauthenticated {
		if packet.Type != protocol.JoinAs {
			logger.WarnF("[%s] %s frame before JOIN_AS", c.connID, packet.Type)
			c.kickProtocolError()
			return false
		}
		return c.handleJoin(packet.Name)
	}

	switch packet.Type {
	case protocol.JoinAs:
		logger.WarnF("[%s] User %s is trying to rename themselves, which is forbidden", c.connID, c.username)
		c.kickProtocolError()
		return false
	case protocol.SubscribeTo:
		return c.handleSubscribe(packet.Name, true)
	case protocol.UnsubscribeFrom:
		return c.handleSubscribe(packet.Name, false)
	case protocol.ListSubscriptions:
		return c.handleListSubscriptions()
	case protocol.Publish:
		return c.handlePublish(packet.Body)
	default:
		c.kickProtocolError()
		return false
	}
}

func (c *ConnectionHandler) handleJoin(name string) bool {
	if name == "" {
		return c.respond(&protocol.ServerPacket{Type: protocol.LoginStatus, Login: protocol.LoginIllegalName})
	}

	// Hold live pushes until the backlog replay is done, so a follower
	// never observes a live message ahead of unreplayed older ones from
	// the same author. The claim makes this session visible to the broker.
	c.mu.Lock()
	c.replaying = true
	c.mu.Unlock()

	if !c.server.manager.Claim(name, c) {
		c.mu.Lock()
		c.replaying = false
		c.pending = nil
		c.mu.Unlock()
		return c.respond(&protocol.ServerPacket{Type: protocol.LoginStatus, Login: protocol.LoginAlreadyUsed})
	}

	if err := c.server.store.SaveAccount(name, time.Now().UnixMicro()); err != nil {
		// no LoginStatus(Ok) may be observed without its account
		logger.ErrorF("[%s] Fail to save account %s, details: %v", c.connID, name, err)
		c.server.manager.Release(name, c)
		c.close(nil)
		return false
	}

	c.username = name
	c.state = stateAuthenticated
	if !c.respond(&protocol.ServerPacket{Type: protocol.LoginStatus, Login: protocol.LoginOk}) {
		return false
	}

	if err := c.replayBacklog(); err != nil {
		logger.ErrorF("[%s] Fail to replay backlog for %s, details: %v", c.connID, name, err)
		c.close(nil)
		return false
	}

	// release held pushes, in arrival order, through the same filter
	c.mu.Lock()
	for i := range c.pending {
		if c.closed {
			break
		}
		c.enqueueLocked(outboundItem{msg: &c.pending[i]})
	}
	c.pending = nil
	c.replaying = false
	closed := c.closed
	c.mu.Unlock()
	return !closed
}

// replayBacklog enqueues, per followee, every message strictly after the
// delivery cursor, in append order. Cursors advance as the writer actually
// delivers.
func (c *ConnectionHandler) replayBacklog() error {
	followees, err := c.server.graph.Followees(c.username)
	if err != nil {
		return err
	}
	for _, followee := range followees {
		position, err := c.server.store.GetCursor(c.username, followee)
		if err != nil {
			return err
		}
		for {
			messages, err := c.server.store.MessagesAfter(followee, position, replayBatchSize)
			if err != nil {
				return err
			}
			if len(messages) == 0 {
				break
			}
			for i := range messages {
				position = messages[i].Seq
				if !c.enqueue(outboundItem{msg: &messages[i]}) {
					return nil
				}
			}
			if len(messages) < replayBatchSize {
				break
			}
		}
	}
	return nil
}

func (c *ConnectionHandler) handleSubscribe(target string, subscribe bool) bool {
	var result subscription.Result
	var err error
	if subscribe {
		result, err = c.server.graph.Subscribe(c.username, target)
	} else {
		result, err = c.server.graph.Unsubscribe(c.username, target)
	}
	if err != nil {
		logger.ErrorF("[%s] Fail to update subscriptions, details: %v", c.connID, err)
		c.close(nil)
		return false
	}

	var code protocol.SubscribeResultCode
	switch result {
	case subscription.Ok:
		code = protocol.SubscribeOk
	case subscription.NotFound:
		code = protocol.SubscribeNotFound
	case subscription.Unchanged:
		code = protocol.SubscribeUnchanged
	}
	return c.respond(&protocol.ServerPacket{Type: protocol.SubscribeResult, Result: code})
}

func (c *ConnectionHandler) handleListSubscriptions() bool {
	followees, err := c.server.graph.Followees(c.username)
	if err != nil {
		logger.ErrorF("[%s] Fail to list subscriptions, details: %v", c.connID, err)
		c.close(nil)
		return false
	}
	for _, followee := range followees {
		if !c.respond(&protocol.ServerPacket{Type: protocol.SubscriptionEntry, Entry: followee}) {
			return false
		}
	}
	// a blank entry terminates the list
	return c.respond(&protocol.ServerPacket{Type: protocol.SubscriptionEntry, Entry: ""})
}

func (c *ConnectionHandler) handlePublish(body []byte) bool {
	if err := c.server.broker.Publish(c.username, body); err != nil {
		logger.ErrorF("[%s] Fail to publish message, details: %v", c.connID, err)
		c.close(nil)
		return false
	}
	return true
}

// Push implements connection.Receiver. Called from the publisher's
// goroutine; it never blocks.
func (c *ConnectionHandler) Push(msg database.StoredMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.replaying {
		c.pending = append(c.pending, msg)
		return
	}
	c.enqueueLocked(outboundItem{msg: &msg})
}

// Closing implements connection.Receiver: graceful server-side shutdown.
func (c *ConnectionHandler) Closing() {
	reason := protocol.KickClosing
	c.close(&reason)
}

func (c *ConnectionHandler) kickProtocolError() {
	reason := protocol.KickProtocolError
	c.close(&reason)
}

// respond enqueues an already-ordered response frame. It reports false if
// the session is closed.
func (c *ConnectionHandler) respond(packet *protocol.ServerPacket) bool {
	frame, err := protocol.EncodeServerPacket(packet)
	if err != nil {
		logger.ErrorF("[%s] Fail to encode %s frame, details: %v", c.connID, packet.Type, err)
		c.close(nil)
		return false
	}
	return c.enqueue(outboundItem{frame: frame})
}

func (c *ConnectionHandler) enqueue(item outboundItem) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	return c.enqueueLocked(item)
}

func (c *ConnectionHandler) enqueueLocked(item outboundItem) bool {
	select {
	case c.outbox <- item:
		return true
	default:
		// unreachable recipient: drop everything and let the next
		// connection catch up from its cursors
		logger.WarnF("[%s] Outbound buffer overflow, disconnecting slow consumer", c.connID)
		c.closeLocked()
		return false
	}
}

// close tears the session down, optionally queueing a final Kick frame.
// Idempotent; safe from any goroutine.
func (c *ConnectionHandler) close(reason *protocol.KickReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if reason != nil {
		packet := &protocol.ServerPacket{Type: protocol.Kick, Reason: *reason}
		if frame, err := protocol.EncodeServerPacket(packet); err == nil {
			select {
			case c.outbox <- outboundItem{frame: frame}:
			default:
			}
		}
	}
	c.closeLocked()
}

func (c *ConnectionHandler) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.outbox)
}

// writeLoop is the session's single writer: it drains the outbox, runs
// pushes through the delivery filter, and closes the socket when the
// outbox is closed or the peer is gone.
func (c *ConnectionHandler) writeLoop() {
	for item := range c.outbox {
		frame := item.frame
		if item.msg != nil {
			frame = c.deliverable(item.msg)
			if frame == nil {
				continue
			}
		}
		if err := send(c.conn, frame, c.connID); err != nil {
			c.close(nil)
			break
		}
		if item.msg != nil {
			c.advanceCursor(item.msg)
		}
	}
	if err := c.conn.Close(); err != nil && !connection.IsNetClosedError(err) {
		logger.WarnF("[%s] Error occured while closing connection, details: %v", c.connID, err)
	}
}

// deliverable encodes the push if this session has not already seen it.
// Replay and live fan-out overlap at the replay boundary; the per-author
// high-water mark drops the duplicates and preserves append order.
func (c *ConnectionHandler) deliverable(msg *database.StoredMessage) []byte {
	if msg.Seq <= c.maxDelivered[msg.Author] {
		return nil
	}
	frame, err := protocol.EncodeServerPacket(&protocol.ServerPacket{
		Type: protocol.ReceivedMessage,
		Message: protocol.Message{
			Date:   msg.Date,
			Author: msg.Author,
			Body:   msg.Body,
		},
	})
	if err != nil {
		logger.ErrorF("[%s] Fail to encode message push, details: %v", c.connID, err)
		return nil
	}
	return frame
}

// advanceCursor records a completed delivery. The durable cursor only
// exists for actual subscription edges, so the author's own messages
// advance the in-memory mark alone.
func (c *ConnectionHandler) advanceCursor(msg *database.StoredMessage) {
	c.maxDelivered[msg.Author] = msg.Seq
	if msg.Author == c.username {
		return
	}
	if err := c.server.store.SetCursor(c.username, msg.Author, msg.Seq); err != nil {
		logger.ErrorF("[%s] Fail to advance cursor (%s, %s), details: %v", c.connID, c.username, msg.Author, err)
	}
}

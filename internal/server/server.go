// Package server carries the TCP side of twiiiiter: the accept loop and the
// per-connection protocol state machine.
package server

import (
	"context"
	"net"
	"strconv"

	"github.com/edgarogh/twiiiiter/internal/broker"
	"github.com/edgarogh/twiiiiter/internal/connection"
	"github.com/edgarogh/twiiiiter/internal/database"
	"github.com/edgarogh/twiiiiter/internal/logger"
	"github.com/edgarogh/twiiiiter/internal/subscription"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var sem = make(chan struct{}, 10000)

// Server wires the shared state every connection works against: the durable
// store, the subscription graph, the live-session table and the broker.
type Server struct {
	store   database.Store
	graph   *subscription.Graph
	manager *connection.Manager
	broker  *broker.Broker
	ln      net.Listener
}

func NewServer(store database.Store) *Server {
	manager := connection.NewManager()
	return &Server{
		store:   store,
		graph:   subscription.NewGraph(store),
		manager: manager,
		broker:  broker.NewBroker(store, manager),
	}
}

// Listen binds the TCP port. Port 0 binds an ephemeral port; the actual
// port is printed so harnesses can scrape it.
func (s *Server) Listen(port int) error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return errors.Wrap(err, "listen failed")
	}
	s.ln = ln
	logger.InfoF("Listening on *:%d", ln.Addr().(*net.TCPAddr).Port)
	return nil
}

// Addr returns the bound address. Only valid after Listen.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if connection.IsNetClosedError(err) {
				return
			}
			logger.ErrorF("Accept connection error: %v", err)
			continue
		}

		logger.DebugF("Accepted new connection from %s", conn.RemoteAddr().String())

		sem <- struct{}{}
		go func(c net.Conn) {
			handler := newConnectionHandler(c, uuid.NewString(), s)
			handler.handleConnection()
			<-sem
		}(conn)
	}
}

// Invoke implements the shutdown cleaner callback: stop accepting, then
// kick every live session with Kick(Closing).
func (s *Server) Invoke(ctx context.Context) error {
	logger.InfoF("Closing server")
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && !connection.IsNetClosedError(err) {
			logger.ErrorF("Server close error: %v", err)
		}
	}
	s.manager.CloseAll()
	return nil
}

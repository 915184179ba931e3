package network

import (
	"errors"
)

var ErrClosed = errors.New("connection closed")

// Conn is one client connection as seen by the server, whichever transport
// carries it.
type Conn interface {
	Send(data []byte) error
	Close() error
	RemoteAddr() string
}

// Handler receives the lifecycle of every client connection. Connect returns
// the session id later passed to Receive and Disconnect. Receive is called
// from the connection's own read goroutine, one message at a time.
type Handler interface {
	Connect(conn Conn) string
	Receive(id string, data []byte)
	Disconnect(id string)
}

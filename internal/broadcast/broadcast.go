package broadcast

import (
	"github.com/siohaza/arenasync/internal/protocol"
)

//go:generate go tool mockgen -destination=./mocks/broadcaster_mock.go -package=mocks . Broadcaster

// Broadcaster fans events out to connected sessions. Calls never block on
// network I/O.
type Broadcaster interface {
	BroadcastAll(ev protocol.Event)
	BroadcastOthers(exclude string, ev protocol.Event)
	SendTo(id string, ev protocol.Event)
}

// Conn is the transport side of one client connection.
type Conn interface {
	Send(data []byte) error
	Close() error
}

type Encoder interface {
	Encode(ev protocol.Event) ([]byte, error)
}

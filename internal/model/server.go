package model

import (
	"context"
	"net"
)

// SecurityLayer produces the listener a server accepts on, TLS or plain.
type SecurityLayer interface {
	Listen(protocol, addr string) (net.Listener, error)
}

// Server is a transport server with a blocking Start and graceful Stop.
type Server interface {
	Start(securityLayer SecurityLayer) error
	Stop(ctx context.Context) error
	Address() string
}

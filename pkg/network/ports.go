package network

import (
	"fmt"
	"net"
)

// AllocatePort binds a TCP listener to an ephemeral port, reads the assigned
// port, and releases it. The caller accepts a benign race: the port may be
// taken again between close and the container bind, in which case container
// start fails and the provision request surfaces that error. No allocation
// state is kept.
func AllocatePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to bind ephemeral port: %w", err)
	}
	defer l.Close()

	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address type %T", l.Addr())
	}
	return addr.Port, nil
}

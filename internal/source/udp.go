package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ayusman/wandsign/internal/gesture"
)

// maxDatagram is large enough for any wireless IMU packet.
const maxDatagram = 4096

// pollInterval bounds how long a read blocks before re-checking the context.
const pollInterval = 250 * time.Millisecond

// UDPSource receives one sample per datagram.
type UDPSource struct {
	conn  net.PacketConn
	parse Parser
	buf   []byte

	mu     sync.Mutex
	closed bool
}

// ListenUDP listens on addr (for example ":9900").
func ListenUDP(addr string, parse Parser) (*UDPSource, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	return NewUDPSource(conn, parse), nil
}

// NewUDPSource wraps an existing packet connection.
func NewUDPSource(conn net.PacketConn, parse Parser) *UDPSource {
	return &UDPSource{conn: conn, parse: parse, buf: make([]byte, maxDatagram)}
}

// Addr returns the local listen address.
func (u *UDPSource) Addr() net.Addr {
	return u.conn.LocalAddr()
}

// ReadSample waits for the next datagram. It returns io.EOF once closed and
// ctx.Err() when the context ends first.
func (u *UDPSource) ReadSample(ctx context.Context) (gesture.Sample, error) {
	for {
		if err := ctx.Err(); err != nil {
			return gesture.Sample{}, err
		}
		if err := u.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return gesture.Sample{}, u.readErr(err)
		}

		n, _, err := u.conn.ReadFrom(u.buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return gesture.Sample{}, u.readErr(err)
		}
		return u.parse(u.buf[:n])
	}
}

func (u *UDPSource) readErr(err error) error {
	u.mu.Lock()
	closed := u.closed
	u.mu.Unlock()

	if closed || errors.Is(err, net.ErrClosed) {
		return io.EOF
	}
	return fmt.Errorf("read udp: %w", err)
}

// Close stops listening.
func (u *UDPSource) Close() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil
	}
	u.closed = true
	u.mu.Unlock()

	return u.conn.Close()
}

// portOf returns the port number of a host:port address, or 0.
func portOf(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0
	}
	return n
}

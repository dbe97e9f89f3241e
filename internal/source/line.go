package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"

	"github.com/ayusman/wandsign/internal/gesture"
)

// LineSource reads one sample per line from a stream such as a serial port or
// a recorded file. Blank lines and lines starting with '#' are ignored.
type LineSource struct {
	rc      io.ReadCloser
	scanner *bufio.Scanner
	parse   Parser

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewLineSource wraps rc. The source owns rc and closes it on Close.
func NewLineSource(rc io.ReadCloser, parse Parser) *LineSource {
	return &LineSource{rc: rc, scanner: bufio.NewScanner(rc), parse: parse}
}

// OpenFile opens a recorded sample file.
func OpenFile(path string, parse Parser) (*LineSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sample file: %w", err)
	}
	return NewLineSource(f, parse), nil
}

// OpenSerial opens a serial device that prints one sample per line.
func OpenSerial(path string, baud int, parse Parser) (*LineSource, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return NewLineSource(port, parse), nil
}

// ReadSample returns the next parsed line. The read itself cannot be
// interrupted by ctx; Close the source to unblock it.
func (l *LineSource) ReadSample(ctx context.Context) (gesture.Sample, error) {
	for {
		if err := ctx.Err(); err != nil {
			return gesture.Sample{}, err
		}
		if !l.scanner.Scan() {
			if err := l.scanner.Err(); err != nil && !l.closed.Load() {
				return gesture.Sample{}, fmt.Errorf("read line: %w", err)
			}
			return gesture.Sample{}, io.EOF
		}

		line := bytes.TrimSpace(l.scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		return l.parse(line)
	}
}

// Close closes the underlying stream.
func (l *LineSource) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		l.closeErr = l.rc.Close()
	})
	return l.closeErr
}

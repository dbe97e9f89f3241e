// Package source provides accelerometer sample sources: a UDP listener for
// phones running a wireless IMU app, serial devices, recorded line files and
// pcap captures.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayusman/wandsign/internal/gesture"
)

var (
	// ErrMalformedSample is returned (wrapped) when one packet or line cannot be
	// turned into a sample. The stream itself is still usable.
	ErrMalformedSample = errors.New("malformed sample")

	// ErrUnknownKind is returned by Open for an unsupported source kind.
	ErrUnknownKind = errors.New("unknown source kind")
)

// Source yields one sample per read.
//
// ReadSample blocks until a sample is available. It returns io.EOF when a
// finite source is exhausted or the source was closed, and an error wrapping
// ErrMalformedSample for input that should be skipped. Close unblocks a
// pending read.
type Source interface {
	ReadSample(ctx context.Context) (gesture.Sample, error)
	Close() error
}

// Source kinds.
const (
	KindUDP    = "udp"
	KindSerial = "serial"
	KindFile   = "file"
	KindPcap   = "pcap"
)

// Config selects and configures a source.
type Config struct {
	Kind       string `yaml:"kind" json:"kind"`
	Address    string `yaml:"address" json:"address"`         // UDP listen address
	Format     string `yaml:"format" json:"format"`           // wireless-imu or xyz
	SerialPort string `yaml:"serial_port" json:"serial_port"` // Serial device path
	BaudRate   int    `yaml:"baud_rate" json:"baud_rate"`
	Path       string `yaml:"path" json:"path"` // File or pcap path
	Paced      bool   `yaml:"paced" json:"paced"` // Replay pcap at capture speed
}

// DefaultConfig listens for wireless IMU packets on UDP port 9900.
func DefaultConfig() Config {
	return Config{
		Kind:       KindUDP,
		Address:    ":9900",
		Format:     FormatWirelessIMU,
		SerialPort: "/dev/ttyUSB0",
		BaudRate:   115200,
	}
}

// Validate checks that the selected kind has what it needs.
func (c Config) Validate() error {
	if _, err := ParserFor(c.Format); err != nil {
		return err
	}
	switch c.Kind {
	case KindUDP:
		if c.Address == "" {
			return fmt.Errorf("udp source needs an address")
		}
	case KindSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("serial source needs a port")
		}
		if c.BaudRate <= 0 {
			return fmt.Errorf("invalid baud rate %d", c.BaudRate)
		}
	case KindFile, KindPcap:
		if c.Path == "" {
			return fmt.Errorf("%s source needs a path", c.Kind)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	return nil
}

// Open creates the source described by cfg.
func Open(cfg Config) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	parse, _ := ParserFor(cfg.Format)

	switch cfg.Kind {
	case KindUDP:
		return ListenUDP(cfg.Address, parse)
	case KindSerial:
		return OpenSerial(cfg.SerialPort, cfg.BaudRate, parse)
	case KindFile:
		return OpenFile(cfg.Path, parse)
	case KindPcap:
		return OpenPcap(cfg.Path, PcapOptions{Port: portOf(cfg.Address), Paced: cfg.Paced}, parse)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
}

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/ayusman/wandsign/internal/gesture"
)

// PcapOptions controls replay of a packet capture.
type PcapOptions struct {
	// Port keeps only UDP datagrams sent to this port. Zero keeps all.
	Port int
	// Paced sleeps between packets to reproduce the capture timing.
	Paced bool
}

// PcapSource replays UDP sample datagrams from a pcap file.
type PcapSource struct {
	f       io.Closer
	packets *gopacket.PacketSource
	opts    PcapOptions
	parse   Parser
	last    time.Time
}

// OpenPcap opens a capture written by tcpdump or Wireshark (pcap format).
func OpenPcap(path string, opts PcapOptions, parse Parser) (*PcapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pcap: %w", err)
	}
	src, err := NewPcapSource(f, opts, parse)
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

// NewPcapSource reads a capture from rc and closes it on Close.
func NewPcapSource(rc io.ReadCloser, opts PcapOptions, parse Parser) (*PcapSource, error) {
	r, err := pcapgo.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("read pcap header: %w", err)
	}
	return &PcapSource{
		f:       rc,
		packets: gopacket.NewPacketSource(r, r.LinkType()),
		opts:    opts,
		parse:   parse,
	}, nil
}

// ReadSample returns the sample carried by the next matching UDP datagram and
// io.EOF at the end of the capture.
func (p *PcapSource) ReadSample(ctx context.Context) (gesture.Sample, error) {
	for {
		if err := ctx.Err(); err != nil {
			return gesture.Sample{}, err
		}

		packet, err := p.packets.NextPacket()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// A truncated last record ends the capture.
			return gesture.Sample{}, io.EOF
		}
		if err != nil {
			return gesture.Sample{}, fmt.Errorf("%w: pcap packet: %v", ErrMalformedSample, err)
		}

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if p.opts.Port != 0 && int(udp.DstPort) != p.opts.Port {
			continue
		}

		if p.opts.Paced {
			if err := p.wait(ctx, packet.Metadata().Timestamp); err != nil {
				return gesture.Sample{}, err
			}
		}
		return p.parse(udp.Payload)
	}
}

// wait sleeps for the gap between this packet and the previous one.
func (p *PcapSource) wait(ctx context.Context, ts time.Time) error {
	defer func() { p.last = ts }()
	if p.last.IsZero() || !ts.After(p.last) {
		return nil
	}

	timer := time.NewTimer(ts.Sub(p.last))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close closes the capture file.
func (p *PcapSource) Close() error {
	return p.f.Close()
}

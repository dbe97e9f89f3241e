package source

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ayusman/wandsign/internal/gesture"
)

// Sample formats.
const (
	// FormatWirelessIMU is the comma-separated sensor dump sent by phone IMU
	// streaming apps. Each sensor block starts with its numeric sensor id.
	FormatWirelessIMU = "wireless-imu"
	// FormatXYZ is one "x,y,z" or "t,x,y,z" record per line.
	FormatXYZ = "xyz"
)

// linearAccelerationID marks the linear acceleration block in a wireless IMU
// packet; the three fields after it are x, y and z.
const linearAccelerationID = "82"

// Parser turns one packet or line into a sample.
type Parser func(payload []byte) (gesture.Sample, error)

// ParserFor returns the parser for a format name. An empty name selects the
// wireless IMU format.
func ParserFor(format string) (Parser, error) {
	switch format {
	case "", FormatWirelessIMU:
		return ParseWirelessIMU, nil
	case FormatXYZ:
		return ParseXYZ, nil
	default:
		return nil, fmt.Errorf("unknown sample format %q", format)
	}
}

// ParseWirelessIMU extracts linear acceleration from a wireless IMU packet
// such as "890.5, 3, 0.1,9.8,0.2, 82, 0.01,-0.3,7.9". The last field equal
// to 82 marks the block, so an earlier sensor value that prints as 82 is
// not mistaken for it.
func ParseWirelessIMU(payload []byte) (gesture.Sample, error) {
	fields := strings.Split(string(bytes.TrimSpace(payload)), ",")

	idx := -1
	for i, f := range fields {
		if strings.TrimSpace(f) == linearAccelerationID {
			idx = i
		}
	}
	if idx < 0 {
		return gesture.Sample{}, fmt.Errorf("%w: no linear acceleration block", ErrMalformedSample)
	}
	if idx+3 >= len(fields) {
		return gesture.Sample{}, fmt.Errorf("%w: truncated linear acceleration block", ErrMalformedSample)
	}

	vals, err := parseFloats(fields[idx+1 : idx+4])
	if err != nil {
		return gesture.Sample{}, err
	}

	s := gesture.Sample{X: vals[0], Y: vals[1], Z: vals[2]}
	// The leading field is the phone's timestamp in seconds when present.
	if idx > 0 {
		if ts, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64); err == nil {
			s.Timestamp = int64(ts * 1000)
		}
	}
	return s, nil
}

// ParseXYZ parses "x,y,z" or "t,x,y,z" where t is in milliseconds.
func ParseXYZ(payload []byte) (gesture.Sample, error) {
	fields := strings.Split(string(bytes.TrimSpace(payload)), ",")

	switch len(fields) {
	case 3:
		vals, err := parseFloats(fields)
		if err != nil {
			return gesture.Sample{}, err
		}
		return gesture.Sample{X: vals[0], Y: vals[1], Z: vals[2]}, nil
	case 4:
		ts, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
		if err != nil {
			return gesture.Sample{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedSample, err)
		}
		vals, err := parseFloats(fields[1:])
		if err != nil {
			return gesture.Sample{}, err
		}
		return gesture.Sample{X: vals[0], Y: vals[1], Z: vals[2], Timestamp: ts}, nil
	default:
		return gesture.Sample{}, fmt.Errorf("%w: expected 3 or 4 fields, got %d", ErrMalformedSample, len(fields))
	}
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSample, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite value %q", ErrMalformedSample, f)
		}
		out[i] = v
	}
	return out, nil
}

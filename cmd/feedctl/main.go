// feedctl is a CTMP source publisher for exercising a running relay.
package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/relayctl/internal/logging"
	"github.com/danmuck/relayctl/internal/protocol/ctmp"
)

type options struct {
	addr      string
	count     int
	payload   string
	size      int
	sensitive bool
	corrupt   bool
	interval  time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.addr, "addr", "127.0.0.1:33333", "relay source address")
	flag.IntVar(&opts.count, "count", 1, "number of frames to send")
	flag.StringVar(&opts.payload, "payload", "feedctl", "payload text")
	flag.IntVar(&opts.size, "size", 0, "pad payload to this many bytes (0 = text length)")
	flag.BoolVar(&opts.sensitive, "sensitive", false, "set the sensitive option bit and stamp a checksum")
	flag.BoolVar(&opts.corrupt, "corrupt", false, "corrupt the checksum of every frame (drop drill)")
	flag.DurationVar(&opts.interval, "interval", 0, "pause between frames")
	flag.Parse()

	logging.ConfigureRuntime()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "feedctl: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	payload := []byte(opts.payload)
	if opts.size > len(payload) {
		padded := make([]byte, opts.size)
		copy(padded, payload)
		for i := len(payload); i < opts.size; i++ {
			padded[i] = '.'
		}
		payload = padded
	}

	var option byte
	if opts.sensitive || opts.corrupt {
		option = ctmp.OptionSensitive
	}

	conn, err := net.DialTimeout("tcp", opts.addr, 3*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info().Str("addr", opts.addr).Int("count", opts.count).Msg("feedctl connected")

	for i := 0; i < opts.count; i++ {
		raw, err := ctmp.EncodeFrame(option, payload)
		if err != nil {
			return err
		}
		if opts.corrupt {
			cs := binary.BigEndian.Uint16(raw[4:6])
			binary.BigEndian.PutUint16(raw[4:6], ^cs)
		}
		if _, err := conn.Write(raw); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if opts.interval > 0 {
			time.Sleep(opts.interval)
		}
	}

	// A refused or desynced connection surfaces as an immediate close; probe
	// it so the operator sees the outcome instead of silently dropped bytes.
	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	probe := make([]byte, 1)
	if _, err := conn.Read(probe); err == nil || !isTimeout(err) {
		log.Warn().Msg("feedctl relay closed the source connection")
	}

	log.Info().
		Int("frames", opts.count).
		Int("payload_len", len(payload)).
		Str("preview", preview(payload)).
		Msg("feedctl done")
	return nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func preview(payload []byte) string {
	const max = 24
	trimmed := bytes.TrimRight(payload, ".")
	if len(trimmed) > max {
		trimmed = trimmed[:max]
	}
	return string(trimmed)
}

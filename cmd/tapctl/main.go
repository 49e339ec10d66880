// tapctl subscribes to a relay's destination port and prints relayed frames.
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/relayctl/internal/logging"
	"github.com/danmuck/relayctl/internal/protocol/ctmp"
)

type options struct {
	addr    string
	max     int
	hexDump bool
}

func main() {
	var opts options
	flag.StringVar(&opts.addr, "addr", "127.0.0.1:44444", "relay destination address")
	flag.IntVar(&opts.max, "max", 0, "exit after this many frames (0 = run until EOF)")
	flag.BoolVar(&opts.hexDump, "hex", false, "print payloads as hex instead of text")
	flag.Parse()

	logging.ConfigureRuntime()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "tapctl: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	conn, err := net.DialTimeout("tcp", opts.addr, 3*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info().Str("addr", opts.addr).Msg("tapctl subscribed")

	dec := ctmp.NewDecoder(ctmp.DefaultLimits())
	buf := make([]byte, 4096)
	received := 0
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			events, feedErr := dec.Feed(buf[:n])
			for _, ev := range events {
				if ev.Frame == nil {
					// The relay only forwards validated frames; a drop here
					// means the stream was corrupted in transit.
					log.Warn().Str("reason", ev.Drop.String()).Msg("tapctl dropped frame")
					continue
				}
				received++
				printFrame(opts, received, ev.Frame)
				if opts.max > 0 && received >= opts.max {
					return nil
				}
			}
			if feedErr != nil {
				return feedErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info().Int("frames", received).Msg("tapctl relay closed the stream")
				return nil
			}
			return err
		}
	}
}

func printFrame(opts options, seq int, frame *ctmp.Frame) {
	payload := frame.Payload()
	if opts.hexDump {
		fmt.Printf("frame %d len=%d sensitive=%v\n%s", seq, len(payload),
			frame.Header.Sensitive(), hex.Dump(payload))
		return
	}
	fmt.Printf("frame %d len=%d sensitive=%v payload=%q\n", seq, len(payload),
		frame.Header.Sensitive(), payload)
}

package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/relayctl/internal/observability"
	"github.com/danmuck/relayctl/internal/protocol/ctmp"
)

// Relay endpoint and backpressure configuration.
type ServiceConfig struct {
	SourceListenAddr string
	DestListenAddr   string
	AdminListenAddr  string
	DestQueueDepth   int
	ReadBufferBytes  int
	WriteTimeout     time.Duration
	Limits           ctmp.Limits
}

// Relay defaults: the operational port pair plus conservative buffering.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		SourceListenAddr: ":33333",
		DestListenAddr:   ":44444",
		AdminListenAddr:  "",
		DestQueueDepth:   256,
		ReadBufferBytes:  4096,
		WriteTimeout:     15 * time.Second,
		Limits:           ctmp.DefaultLimits(),
	}
}

// WithDefaults fills zero-valued fields from DefaultServiceConfig.
func (cfg ServiceConfig) WithDefaults() ServiceConfig {
	def := DefaultServiceConfig()
	if strings.TrimSpace(cfg.SourceListenAddr) == "" {
		cfg.SourceListenAddr = def.SourceListenAddr
	}
	if strings.TrimSpace(cfg.DestListenAddr) == "" {
		cfg.DestListenAddr = def.DestListenAddr
	}
	if cfg.DestQueueDepth <= 0 {
		cfg.DestQueueDepth = def.DestQueueDepth
	}
	if cfg.ReadBufferBytes <= 0 {
		cfg.ReadBufferBytes = def.ReadBufferBytes
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.Limits.MaxPayloadBytes <= 0 {
		cfg.Limits = def.Limits
	}
	return cfg
}

// Relay runtime service owning both listeners and all connection handlers.
type Service struct {
	cfg  ServiceConfig
	core *Core

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	startedAt time.Time
}

// Relay service constructor using default configuration.
func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

// Relay service constructor using explicit configuration.
func NewServiceWithConfig(cfg ServiceConfig) *Service {
	cfg = cfg.WithDefaults()
	return &Service{
		cfg:       cfg,
		core:      NewCore(cfg.DestQueueDepth),
		conns:     make(map[net.Conn]struct{}),
		startedAt: time.Now(),
	}
}

// Core exposes the shared relay state, for the admin surface and tests.
func (s *Service) Core() *Core {
	return s.core
}

// Relay runtime entrypoint that blocks until signal shutdown.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sourceLn, err := net.Listen("tcp", s.cfg.SourceListenAddr)
	if err != nil {
		return err
	}
	destLn, err := net.Listen("tcp", s.cfg.DestListenAddr)
	if err != nil {
		sourceLn.Close()
		return err
	}
	log.Info().
		Str("source_addr", sourceLn.Addr().String()).
		Str("dest_addr", destLn.Addr().String()).
		Msg("relay.Service.Run listening")

	adminErr := make(chan error, 1)
	if strings.TrimSpace(s.cfg.AdminListenAddr) != "" {
		go func() {
			adminErr <- s.serveAdmin(ctx, strings.TrimSpace(s.cfg.AdminListenAddr))
		}()
	}

	serveErr := make(chan error, 2)
	go func() {
		serveErr <- s.ServeSource(ctx, sourceLn)
	}()
	go func() {
		serveErr <- s.ServeDestinations(ctx, destLn)
	}()

	select {
	case err := <-serveErr:
		stop()
		<-serveErr
		return err
	case err := <-adminErr:
		if err != nil {
			return err
		}
		return <-serveErr
	}
}

// ServeSource accepts source-role connections on ln. At most one source is
// active at a time; a connection attempted while the slot is occupied is
// closed immediately without reading any bytes.
func (s *Service) ServeSource(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if !s.core.TryBecomeSource(conn) {
			observability.RecordSourceConnection("refused")
			log.Warn().
				Str("remote", conn.RemoteAddr().String()).
				Msg("relay.ServeSource refused second source")
			_ = conn.Close()
			continue
		}
		observability.RecordSourceConnection("accepted")
		s.trackConn(conn)
		go s.handleSource(conn)
	}
}

// ServeDestinations accepts destination-role connections on ln. Destinations
// are unlimited; each gets a registry entry and a writer goroutine.
func (s *Service) ServeDestinations(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		dest := s.core.RegisterDest(conn)
		log.Info().
			Str("dest_id", dest.ID).
			Str("remote", conn.RemoteAddr().String()).
			Msg("relay.ServeDestinations destination registered")
		go s.handleDest(dest)
	}
}

// Relay source handler: drive a decoder over the connection's byte stream
// and broadcast every validated frame. Desync, read error, and EOF all
// terminate the connection and free the source slot.
func (s *Service) handleSource(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	defer func() {
		s.core.ReleaseSource(conn)
		_ = conn.Close()
		s.untrackConn(conn)
		log.Info().Str("remote", remote).Msg("relay.handleSource source disconnected")
	}()
	log.Info().Str("remote", remote).Msg("relay.handleSource source connected")

	dec := ctmp.NewDecoder(s.cfg.Limits)
	buf := make([]byte, s.cfg.ReadBufferBytes)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			events, feedErr := dec.Feed(buf[:n])
			for _, ev := range events {
				if ev.Frame != nil {
					delivered := s.core.Broadcast(ev.Frame.Raw)
					observability.RecordFrameRelayed(len(ev.Frame.Raw))
					log.Debug().
						Int("payload_len", int(ev.Frame.Header.Length)).
						Int("delivered", delivered).
						Msg("relay.handleSource frame broadcast")
					continue
				}
				observability.RecordFrameDropped(ev.Drop.String())
				log.Warn().
					Str("reason", ev.Drop.String()).
					Str("remote", remote).
					Msg("relay.handleSource frame dropped")
			}
			if feedErr != nil {
				observability.RecordDesync()
				log.Warn().
					Err(feedErr).
					Str("remote", remote).
					Msg("relay.handleSource stream desynced, closing source")
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Warn().Err(err).Str("remote", remote).Msg("relay.handleSource read error")
			}
			return
		}
	}
}

// Relay destination handler: drain the outbox into the socket. Destinations
// never send payload bytes; a reader goroutine watches for peer close so an
// idle destination is deregistered promptly.
func (s *Service) handleDest(dest *Dest) {
	conn := dest.Conn()
	remote := conn.RemoteAddr().String()
	defer func() {
		s.core.DeregisterDest(dest)
		s.untrackConn(conn)
		log.Info().
			Str("dest_id", dest.ID).
			Str("remote", remote).
			Msg("relay.handleDest destination removed")
	}()

	go func() {
		discard := make([]byte, 512)
		for {
			if _, err := conn.Read(discard); err != nil {
				s.core.DeregisterDest(dest)
				return
			}
		}
	}()

	for {
		select {
		case payload := <-dest.Outbox():
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if _, err := conn.Write(payload); err != nil {
				observability.RecordEviction("write_error")
				log.Warn().
					Err(err).
					Str("dest_id", dest.ID).
					Str("remote", remote).
					Msg("relay.handleDest write failed")
				return
			}
			dest.sent.Add(1)
		case <-dest.Quit():
			return
		}
	}
}

// Relay connection-tracking add operation for coordinated shutdown.
func (s *Service) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

// Relay connection-tracking remove operation after connection teardown.
func (s *Service) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

// Relay shutdown helper that closes tracked active connections.
func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}

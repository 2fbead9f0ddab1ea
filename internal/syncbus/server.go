package syncbus

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// scannerInitBufSize is the initial buffer size for the per-connection scanner (64 KB).
	scannerInitBufSize = 64 * 1024
	// scannerMaxTokenSize is the maximum envelope size accepted (1 MB).
	scannerMaxTokenSize = 1024 * 1024
	// writeTimeout bounds a single forward to one peer.
	writeTimeout = 2 * time.Second
)

type peer struct {
	conn net.Conn
	mu   sync.Mutex
}

func (p *peer) write(line []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := p.conn.Write(line)
	return err
}

// Server is the relay hub. It forwards each envelope received on one
// connection to every other connection.
type Server struct {
	socketPath string
	listener   net.Listener
	logger     zerolog.Logger

	mu    sync.Mutex
	peers map[*peer]struct{}

	wg   sync.WaitGroup
	quit chan struct{}
	once sync.Once
}

// NewServer creates a hub bound to socketPath. Call Start to listen.
func NewServer(socketPath string, logger zerolog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		logger:     logger.With().Str("component", "syncbus").Logger(),
		peers:      make(map[*peer]struct{}),
		quit:       make(chan struct{}),
	}
}

// Path returns the socket path.
func (s *Server) Path() string { return s.socketPath }

// Start begins listening on the Unix socket and accepting connections.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("syncbus: mkdir: %w", err)
	}

	// A socket file nobody answers on is left over from a crashed hub.
	if _, err := os.Stat(s.socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if dialErr != nil {
			_ = os.Remove(s.socketPath)
		} else {
			conn.Close()
			return fmt.Errorf("%w on %s", ErrHubRunning, s.socketPath)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("syncbus: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info().Str("socket", s.socketPath).Msg("relay hub listening")
	return nil
}

// Stop closes the listener and every connection, waits for handlers to
// exit, and removes the socket file. It is safe to call more than once.
func (s *Server) Stop() {
	s.once.Do(func() {
		close(s.quit)
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Lock()
		for p := range s.peers {
			p.conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		_ = os.Remove(s.socketPath)
	})
}

// Peers returns the number of connected clients.
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				s.logger.Warn().Err(err).Msg("accept failed")
				continue
			}
		}
		p := &peer{conn: conn}
		s.mu.Lock()
		s.peers[p] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(p)
	}
}

func (s *Server) handleConn(p *peer) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.peers, p)
		s.mu.Unlock()
		p.conn.Close()
	}()

	scanner := bufio.NewScanner(p.conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)

	for scanner.Scan() {
		select {
		case <-s.quit:
			return
		default:
		}

		if _, err := decodeEnvelope(scanner.Bytes()); err != nil {
			s.logger.Debug().Err(err).Msg("dropping envelope")
			continue
		}
		line := make([]byte, 0, len(scanner.Bytes())+1)
		line = append(line, scanner.Bytes()...)
		line = append(line, '\n')
		s.broadcast(p, line)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug().Err(err).Msg("connection closed")
	}
}

// broadcast forwards line to every peer except from. A peer whose write
// fails is disconnected.
func (s *Server) broadcast(from *peer, line []byte) {
	s.mu.Lock()
	targets := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		if p != from {
			targets = append(targets, p)
		}
	}
	s.mu.Unlock()

	for _, p := range targets {
		if err := p.write(line); err != nil {
			s.logger.Warn().Err(err).Msg("dropping slow peer")
			p.conn.Close()
		}
	}
}

package syncbus

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Meeting-BaaS/status-sub000/internal/selection"
)

// Client connects to a hub and implements selection.Bus. Messages published
// through it reach its own subscribers and every other client of the hub.
type Client struct {
	conn   net.Conn
	logger zerolog.Logger

	writeMu sync.Mutex
	closed  bool

	subMu  sync.RWMutex
	subs   map[int]func(selection.Message)
	nextID int

	wg sync.WaitGroup
}

var _ selection.Bus = (*Client)(nil)

// Dial connects to the hub at socketPath and starts reading.
func Dial(socketPath string, logger zerolog.Logger) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("syncbus: dial: %w", err)
	}
	c := &Client{
		conn:   conn,
		logger: logger.With().Str("component", "syncbus-client").Logger(),
		subs:   make(map[int]func(selection.Message)),
	}
	c.wg.Add(1)
	go c.readLoop()
	return c, nil
}

// Publish sends m to the hub and delivers it to local subscribers.
func (c *Client) Publish(m selection.Message) error {
	line, err := json.Marshal(Envelope{Version: ProtocolVersion, Kind: KindSelection, Message: m})
	if err != nil {
		return fmt.Errorf("syncbus: marshal: %w", err)
	}
	line = append(line, '\n')

	c.writeMu.Lock()
	if c.closed {
		c.writeMu.Unlock()
		return ErrClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err = c.conn.Write(line); err != nil {
		c.writeMu.Unlock()
		return fmt.Errorf("syncbus: send: %w", err)
	}
	c.wg.Add(1)
	c.writeMu.Unlock()

	go func() {
		defer c.wg.Done()
		c.dispatch(line)
	}()
	return nil
}

// Subscribe registers fn. The returned func unregisters it.
func (c *Client) Subscribe(fn func(selection.Message)) func() {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Close disconnects from the hub and waits for pending deliveries.
func (c *Client) Close() error {
	c.writeMu.Lock()
	if c.closed {
		c.writeMu.Unlock()
		return nil
	}
	c.closed = true
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.wg.Wait()
	return err
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	for scanner.Scan() {
		c.dispatch(scanner.Bytes())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Warn().Err(err).Msg("relay read failed")
	}
}

// dispatch decodes line once per subscriber so no two subscribers share
// slices.
func (c *Client) dispatch(line []byte) {
	c.subMu.RLock()
	fns := make([]func(selection.Message), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range fns {
		env, err := decodeEnvelope(line)
		if err != nil {
			c.logger.Debug().Err(err).Msg("dropping envelope")
			return
		}
		fn(env.Message)
	}
}

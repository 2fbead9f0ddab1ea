// Package syncbus relays selection messages between processes over a Unix
// domain socket.
//
// The wire format is one JSON envelope per line:
//
//	{"v":1,"kind":"selection","message":{"origin":"...","selected":[...],"hovered":[...],"sentAt":"..."}}
//
// The hub forwards every line it receives from one connection to all other
// connections, unchanged. Lines that do not decode as an envelope of a known
// kind and version are dropped by both the hub and the client.
package syncbus

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/Meeting-BaaS/status-sub000/internal/selection"
)

const (
	// ProtocolVersion is the envelope version this package speaks.
	ProtocolVersion = 1
	// KindSelection tags envelopes carrying a selection.Message.
	KindSelection = "selection"
)

var (
	// ErrClosed is returned by Publish after the client is closed.
	ErrClosed = errors.New("syncbus: client closed")
	// ErrHubRunning is returned by Start when a live hub already owns the socket.
	ErrHubRunning = errors.New("syncbus: another hub is already listening")
	// ErrMalformed marks an envelope that failed to decode or validate.
	ErrMalformed = errors.New("syncbus: malformed envelope")
)

// Envelope frames one message on the wire.
type Envelope struct {
	Version int               `json:"v"`
	Kind    string            `json:"kind"`
	Message selection.Message `json:"message"`
}

// decodeEnvelope parses and validates one line.
func decodeEnvelope(line []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Envelope{}, errors.Join(ErrMalformed, err)
	}
	if env.Version != ProtocolVersion || env.Kind != KindSelection || env.Message.Origin == "" {
		return Envelope{}, ErrMalformed
	}
	return env, nil
}

// DefaultSocketPath returns the default hub socket path.
// It prefers $XDG_RUNTIME_DIR/botstatus/sync.sock, falling back to
// ~/.local/state/botstatus/sync.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "botstatus", "sync.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/botstatus-sync.sock"
	}
	return filepath.Join(home, ".local", "state", "botstatus", "sync.sock")
}

package events

import (
	"fmt"
	"sync"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"

	// Register all mangos transports (tcp, ipc, inproc, ...)
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// Broadcaster publishes domain events on an NNG pub socket so external
// consumers (harvesters, search indexers) can follow graph changes without
// polling. Frames are "topic|json"; subscribers filter on the topic prefix.
type Broadcaster struct {
	sock mangos.Socket
	mu   sync.Mutex
}

// NewBroadcaster opens a pub socket listening on addr (e.g. tcp://:7790)
func NewBroadcaster(addr string) (*Broadcaster, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create pub socket: %w", err)
	}
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &Broadcaster{sock: sock}, nil
}

// Publish sends one event frame. Pub sockets never block: events published
// while no subscriber is connected are simply not delivered.
func (b *Broadcaster) Publish(event Event) error {
	payload, err := event.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	frame := make([]byte, 0, len(event.Topic)+1+len(payload))
	frame = append(frame, event.Topic...)
	frame = append(frame, '|')
	frame = append(frame, payload...)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.sock.Send(frame); err != nil {
		return fmt.Errorf("failed to send event frame: %w", err)
	}
	return nil
}

// Attach forwards every event arriving on the subscription to the socket.
// It returns when the subscription channel closes.
func (b *Broadcaster) Attach(sub *Subscription) {
	for event := range sub.Channel() {
		// Best effort: a send failure must not stall the bus drain
		_ = b.Publish(event)
	}
}

// Close shuts the socket down
func (b *Broadcaster) Close() error {
	return b.sock.Close()
}

// ParseFrame splits a wire frame into topic and payload
func ParseFrame(frame []byte) (topic string, payload []byte, err error) {
	for i, c := range frame {
		if c == '|' {
			return string(frame[:i]), frame[i+1:], nil
		}
	}
	return "", nil, fmt.Errorf("malformed event frame")
}

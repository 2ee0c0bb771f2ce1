package local

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("pubsub: closed")

// LocalMessage is an in-process pub/sub message.
type LocalMessage struct {
	Channel string
	Payload string
}

type subscription struct {
	ch       chan *LocalMessage
	channels []string
	once     sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// LocalPubSub is an in-process fan-out pub/sub implementation. Slow
// subscribers lose messages rather than block publishers.
type LocalPubSub struct {
	mu      sync.RWMutex
	subs    map[string][]*subscription
	bufSize int
	closed  bool
}

// NewPubSub creates a new LocalPubSub with the given per-subscriber buffer size.
func NewPubSub(bufSize int) *LocalPubSub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &LocalPubSub{
		subs:    make(map[string][]*subscription),
		bufSize: bufSize,
	}
}

// Publish sends a message to all subscribers of the given channel.
func (ps *LocalPubSub) Publish(_ context.Context, channel, message string) error {
	msg := &LocalMessage{Channel: channel, Payload: message}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for _, s := range ps.subs[channel] {
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of messages for the given channels and a
// cancel function that unsubscribes and closes it.
func (ps *LocalPubSub) Subscribe(_ context.Context, channels ...string) (<-chan *LocalMessage, func(), error) {
	s := &subscription{ch: make(chan *LocalMessage, ps.bufSize), channels: channels}

	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil, nil, ErrClosed
	}
	for _, c := range channels {
		ps.subs[c] = append(ps.subs[c], s)
	}
	ps.mu.Unlock()

	cancel := func() {
		ps.mu.Lock()
		ps.remove(s)
		ps.mu.Unlock()
		s.close()
	}
	return s.ch, cancel, nil
}

func (ps *LocalPubSub) remove(s *subscription) {
	for _, c := range s.channels {
		list := ps.subs[c]
		for j, sub := range list {
			if sub == s {
				ps.subs[c] = append(list[:j], list[j+1:]...)
				break
			}
		}
		if len(ps.subs[c]) == 0 {
			delete(ps.subs, c)
		}
	}
}

// Close ends every subscription and refuses new ones.
func (ps *LocalPubSub) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.closed {
		return nil
	}
	ps.closed = true
	for _, list := range ps.subs {
		for _, s := range list {
			s.close()
		}
	}
	ps.subs = make(map[string][]*subscription)
	return nil
}

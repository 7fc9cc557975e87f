// Package transport defines the datagram-bus contract the background
// worker uses to talk to servers, plus an in-memory reference
// implementation for single-process clusters and tests.
//
// The contract is deliberately narrow: per-pair FIFO, reliable delivery,
// variable-length payloads, addressed by integer thread id (the same id
// space RegisterThread hands out). Anything fancier — retries, partial
// delivery, multiplexed streams — is a transport-layer concern outside
// this package's scope.
package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Kind distinguishes the handful of message shapes the background worker
// protocol exchanges with servers.
type Kind int

const (
	KindRowRequest Kind = iota
	KindRowReply
	KindOpLogUpdate
)

// Message is one datagram: a row-fetch request, a row reply, or a batch of
// oplog updates being shipped to a server.
type Message struct {
	RequestID uuid.UUID
	Kind      Kind
	TableID   int32
	RowID     int32
	Clock     int32
	Version   uint32
	Payload   []byte
}

// Bus is the transport contract: reliable, per-pair FIFO delivery between
// integer-addressed peers.
type Bus interface {
	// Send delivers msg from from to to. Blocks until accepted by the
	// peer's inbox or ctx is done.
	Send(ctx context.Context, from, to int32, msg Message) error

	// Receive blocks until a message addressed to self arrives or ctx is
	// done.
	Receive(ctx context.Context, self int32) (Message, error)
}

// InMemoryBus is a reference Bus implementation for single-process
// clusters: one buffered inbox channel per registered peer id. Messages
// from a given sender to a given recipient are delivered in the order
// Send was called, matching the per-pair FIFO contract.
type InMemoryBus struct {
	mu      sync.Mutex
	inboxes map[int32]chan Message
}

// NewInMemoryBus returns an empty bus. Peers must Register before they can
// Send to or Receive from it.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{inboxes: make(map[int32]chan Message)}
}

// Register creates an inbox for id with the given buffer depth. Registering
// the same id twice replaces its inbox.
func (b *InMemoryBus) Register(id int32, bufferSize int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inboxes[id] = make(chan Message, bufferSize)
}

// Deregister removes id's inbox. Sends to id made after it returns fail; a
// Send that already looked up the inbox still delivers into it.
func (b *InMemoryBus) Deregister(id int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inboxes, id)
}

// Send implements Bus.
func (b *InMemoryBus) Send(ctx context.Context, from, to int32, msg Message) error {
	b.mu.Lock()
	inbox, ok := b.inboxes[to]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: peer %d is not registered", to)
	}

	select {
	case inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive implements Bus.
func (b *InMemoryBus) Receive(ctx context.Context, self int32) (Message, error) {
	b.mu.Lock()
	inbox, ok := b.inboxes[self]
	b.mu.Unlock()
	if !ok {
		return Message{}, fmt.Errorf("transport: peer %d is not registered", self)
	}

	select {
	case msg := <-inbox:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

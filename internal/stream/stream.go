// Package stream fans wallet transaction events out to live subscribers,
// backing the operator event feed.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"vegaslounge.live/internal/store"
)

// Event describes one applied wallet transaction.
type Event struct {
	TxID      string                `json:"txId"`
	UserID    string                `json:"userId"`
	Kind      store.TransactionKind `json:"kind"`
	Amount    decimal.Decimal       `json:"amount"`
	Balance   decimal.Decimal       `json:"balance"`
	Timestamp time.Time             `json:"timestamp"`
}

// FromTransaction builds the feed event for a stored transaction.
func FromTransaction(tx store.Transaction) Event {
	return Event{
		TxID:      tx.TxID,
		UserID:    tx.UserID,
		Kind:      tx.Kind,
		Amount:    tx.Amount,
		Balance:   tx.Balance,
		Timestamp: tx.CreatedAt,
	}
}

// Stream fan-outs events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will
// receive events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

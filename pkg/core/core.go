package core

import (
	"context"
	"time"
)

// Feeder provides market data for monitored instruments.
// Testnet and mainnet implementations are interface-identical.
type Feeder interface {
	LastQuote(ctx context.Context, pair string) (float64, error)
	CandlesByLimit(ctx context.Context, pair, period string, limit int) ([]Candle, error)
	CandlesSubscription(ctx context.Context, pair, timeframe string) (chan Candle, chan error)
	Account(ctx context.Context) (Account, error)
}

// SnapshotConsumer receives indicator snapshots from a feed.
type SnapshotConsumer func(Snapshot)

// Messenger delivers a single message to the configured channel.
type Messenger interface {
	Send(ctx context.Context, text string) error
}

// DocumentStore is the persistence gateway. Save is guarded by an
// optimistic version check: expectedVersion 0 means "create only".
type DocumentStore interface {
	Load(ctx context.Context, key string) (Document, error)
	Save(ctx context.Context, doc Document, expectedVersion int64) (int64, error)
	List(ctx context.Context, prefix string) ([]Document, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Document is the versioned unit stored by a DocumentStore.
type Document struct {
	Key       string    `json:"key"`
	Version   int64     `json:"version"`
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

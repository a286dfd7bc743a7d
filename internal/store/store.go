// Package store holds durable copies of chat transcripts.
package store

import (
	"context"
	"fmt"

	"github.com/zhouzirui/gemini-chat/backend/internal/model/chat"
)

const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Archive is implemented by Memory and SQLite.
type Archive interface {
	Append(ctx context.Context, sessionID string, turn chat.Turn) error
	Load(ctx context.Context, sessionID string) ([]chat.Entry, error)
	Close() error
}

// Open returns the archive for driver. DriverNone yields a nil Archive.
func Open(ctx context.Context, driver, dsn string) (Archive, error) {
	switch driver {
	case DriverNone:
		return nil, nil
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverSQLite:
		s, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

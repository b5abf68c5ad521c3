package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/caldog20/overlaymgr/types"
)

var ErrNotFound = errors.New("not found in database")

// Store is the network directory: the database view of servers and client connections.
// Listing methods return records in a stable, store-defined order that callers must keep.
type Store interface {
	GetServers(ctx context.Context) ([]types.Server, error)
	GetServer(ctx context.Context, name string) (*types.Server, error)
	// GetClients returns the connections of server, or every connection when server is empty.
	GetClients(ctx context.Context, server string) ([]types.ClientConnection, error)
	GetClientConnection(ctx context.Context, server, client string) (*types.ClientConnection, error)

	CreateServer(ctx context.Context, server *types.Server) error
	CreateClient(ctx context.Context, client *types.Client) error
	CreateClientConnection(ctx context.Context, conn *types.ClientConnection) error
	Close() error
}

// Open picks a store implementation from the scheme of databaseURL:
//
//	postgres://, postgresql://   PostgreSQL through gorm
//	sqlite://<path>, <path>      SQLite through gorm
//	bolt://<path>                bbolt file
//	memory://                    in-memory, lost on exit
func Open(databaseURL string) (Store, error) {
	scheme, rest, ok := strings.Cut(databaseURL, "://")
	if !ok {
		return NewSqliteStore(databaseURL)
	}

	switch scheme {
	case "postgres", "postgresql":
		return NewPostgresStore(databaseURL)
	case "sqlite", "sqlite3":
		return NewSqliteStore(rest)
	case "bolt":
		return NewBoltStore(rest)
	case "memory":
		return NewMapStore(), nil
	default:
		return nil, fmt.Errorf("unsupported database url scheme %q", scheme)
	}
}

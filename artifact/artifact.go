// Package artifact renders the directory view of the overlay into the documents
// served or written by the manager: the DNS hosts file, the JSON network status
// and per-client tunnel configuration.
package artifact

import (
	"context"

	"github.com/caldog20/overlaymgr/types"
)

// Directory is the read side of the network directory used to build artifacts.
type Directory interface {
	GetServers(ctx context.Context) ([]types.Server, error)
	GetClients(ctx context.Context, server string) ([]types.ClientConnection, error)
}

// Snapshot is one read of every server and every client connection.
type Snapshot struct {
	Servers []types.Server
	Clients []types.ClientConnection
}

// Fetch reads all servers and all client connections, unfiltered.
func Fetch(ctx context.Context, dir Directory) (*Snapshot, error) {
	servers, err := dir.GetServers(ctx)
	if err != nil {
		return nil, err
	}
	clients, err := dir.GetClients(ctx, "")
	if err != nil {
		return nil, err
	}
	return &Snapshot{Servers: servers, Clients: clients}, nil
}

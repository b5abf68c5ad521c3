package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/caldog20/overlaymgr/types"
)

// MapStore is an in-memory Store. Servers are listed in name order and
// connections in insertion order, matching the persistent stores.
type MapStore struct {
	mu           sync.Mutex
	servers      map[string]types.Server
	clients      map[uint64]types.Client
	conns        []types.ClientConnection
	idSequence   uint64
	connSequence uint64
}

func NewMapStore() *MapStore {
	return &MapStore{
		servers: make(map[string]types.Server),
		clients: make(map[uint64]types.Client),
	}
}

func (m *MapStore) GetServers(_ context.Context) ([]types.Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	servers := make([]types.Server, 0, len(m.servers))
	for _, s := range m.servers {
		servers = append(servers, s)
	}
	slices.SortFunc(servers, func(a, b types.Server) int {
		return strings.Compare(a.Name, b.Name)
	})
	return servers, nil
}

func (m *MapStore) GetServer(_ context.Context, name string) (*types.Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.servers[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MapStore) GetClients(_ context.Context, server string) ([]types.ClientConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns := []types.ClientConnection{}
	for _, c := range m.conns {
		if server != "" && c.Server != server {
			continue
		}
		conns = append(conns, m.withClient(c))
	}
	return conns, nil
}

func (m *MapStore) GetClientConnection(_ context.Context, server, client string) (*types.ClientConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.conns {
		if c.Server != server {
			continue
		}
		withClient := m.withClient(c)
		if withClient.Client.Name == client {
			return &withClient, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MapStore) withClient(c types.ClientConnection) types.ClientConnection {
	if client, ok := m.clients[c.ClientID]; ok {
		c.Client = client
	} else {
		c.Client = types.Client{ID: c.ClientID}
	}
	return c
}

func (m *MapStore) CreateServer(_ context.Context, server *types.Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.servers[server.Name]; ok {
		return errors.New("server already exists: " + server.Name)
	}
	now := time.Now()
	server.CreatedAt = now
	server.UpdatedAt = now
	m.servers[server.Name] = *server
	return nil
}

func (m *MapStore) CreateClient(_ context.Context, client *types.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.clients {
		if c.Name == client.Name {
			return errors.New("client already exists: " + client.Name)
		}
	}
	m.idSequence++
	client.ID = m.idSequence
	now := time.Now()
	client.CreatedAt = now
	client.UpdatedAt = now
	m.clients[client.ID] = *client
	return nil
}

func (m *MapStore) CreateClientConnection(_ context.Context, conn *types.ClientConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn.ClientID == 0 {
		conn.ClientID = conn.Client.ID
	}
	if _, ok := m.clients[conn.ClientID]; !ok {
		return ErrNotFound
	}
	m.connSequence++
	conn.ID = m.connSequence
	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	stored := *conn
	stored.Client = types.Client{}
	m.conns = append(m.conns, stored)
	return nil
}

func (m *MapStore) Close() error {
	return nil
}

package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"github.com/caldog20/overlaymgr/types"
	bolt "go.etcd.io/bbolt"
)

var (
	serversBucket     = []byte("servers")
	clientsBucket     = []byte("clients")
	clientNamesBucket = []byte("client_names")
	connsBucket       = []byte("client_connections")
)

// BoltStore keeps records as JSON values. Servers are keyed by name, clients and
// connections by sequence id, so cursors return name and insertion order respectively.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("bolt db file path required")
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{serversBucket, clientsBucket, clientNamesBucket, connsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) GetServers(_ context.Context) ([]types.Server, error) {
	servers := []types.Server{}
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(serversBucket).ForEach(func(k, v []byte) error {
			s := types.Server{}
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			servers = append(servers, s)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return servers, nil
}

func (b *BoltStore) GetServer(_ context.Context, name string) (*types.Server, error) {
	var s *types.Server
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(serversBucket).Get([]byte(name))
		if v == nil {
			return ErrNotFound
		}
		s = &types.Server{}
		return json.Unmarshal(v, s)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (b *BoltStore) GetClients(_ context.Context, server string) ([]types.ClientConnection, error) {
	conns := []types.ClientConnection{}
	err := b.db.View(func(tx *bolt.Tx) error {
		clients := tx.Bucket(clientsBucket)
		c := tx.Bucket(connsBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			conn := types.ClientConnection{}
			if err := json.Unmarshal(v, &conn); err != nil {
				return err
			}
			if server != "" && conn.Server != server {
				continue
			}
			if err := loadClient(clients, &conn); err != nil {
				return err
			}
			conns = append(conns, conn)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conns, nil
}

func (b *BoltStore) GetClientConnection(_ context.Context, server, client string) (*types.ClientConnection, error) {
	var conn *types.ClientConnection
	err := b.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(clientNamesBucket).Get([]byte(client))
		if id == nil {
			return ErrNotFound
		}
		clientID := binary.BigEndian.Uint64(id)

		c := tx.Bucket(connsBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			candidate := &types.ClientConnection{}
			if err := json.Unmarshal(v, candidate); err != nil {
				return err
			}
			if candidate.ClientID == clientID && candidate.Server == server {
				conn = candidate
				return loadClient(tx.Bucket(clientsBucket), conn)
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func loadClient(clients *bolt.Bucket, conn *types.ClientConnection) error {
	v := clients.Get(itob(conn.ClientID))
	if v == nil {
		conn.Client = types.Client{ID: conn.ClientID}
		return nil
	}
	return json.Unmarshal(v, &conn.Client)
}

func (b *BoltStore) CreateServer(_ context.Context, server *types.Server) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(serversBucket)
		if bucket.Get([]byte(server.Name)) != nil {
			return errors.New("server already exists: " + server.Name)
		}
		now := time.Now()
		server.CreatedAt = now
		server.UpdatedAt = now
		data, err := json.Marshal(server)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(server.Name), data)
	})
}

func (b *BoltStore) CreateClient(_ context.Context, client *types.Client) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		names := tx.Bucket(clientNamesBucket)
		if names.Get([]byte(client.Name)) != nil {
			return errors.New("client already exists: " + client.Name)
		}

		bucket := tx.Bucket(clientsBucket)
		id, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		client.ID = id
		now := time.Now()
		client.CreatedAt = now
		client.UpdatedAt = now

		data, err := json.Marshal(client)
		if err != nil {
			return err
		}
		if err := bucket.Put(itob(id), data); err != nil {
			return err
		}
		return names.Put([]byte(client.Name), itob(id))
	})
}

func (b *BoltStore) CreateClientConnection(_ context.Context, conn *types.ClientConnection) error {
	if conn.ClientID == 0 {
		conn.ClientID = conn.Client.ID
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(clientsBucket).Get(itob(conn.ClientID)) == nil {
			return ErrNotFound
		}

		bucket := tx.Bucket(connsBucket)
		id, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		conn.ID = id
		now := time.Now()
		conn.CreatedAt = now
		conn.UpdatedAt = now

		data, err := json.Marshal(conn)
		if err != nil {
			return err
		}
		return bucket.Put(itob(id), data)
	})
}

// itob returns an 8-byte big endian representation of v.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}

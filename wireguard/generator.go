// Package wireguard renders client tunnel configurations for the local server.
package wireguard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/caldog20/overlaymgr/artifact"
	"github.com/caldog20/overlaymgr/config"
	"github.com/caldog20/overlaymgr/store"
	"github.com/caldog20/overlaymgr/types"
)

var ErrNoClientKey = errors.New("client has no private key")

type Directory interface {
	GetServer(ctx context.Context, name string) (*types.Server, error)
	GetClientConnection(ctx context.Context, server, client string) (*types.ClientConnection, error)
}

// Generator builds the configuration a client needs to join the local server.
type Generator struct {
	server    string
	publicKey types.PublicKey
	keepalive *uint32
	dir       Directory
}

func NewGenerator(conf *config.ServerConfig, dir Directory) (*Generator, error) {
	key, err := conf.Key()
	if err != nil {
		return nil, fmt.Errorf("server private key: %w", err)
	}
	return &Generator{
		server:    conf.Name,
		publicKey: key.Public(),
		keepalive: conf.Keepalive,
		dir:       dir,
	}, nil
}

// GenerateClientConfig implements artifact.ClientConfigGenerator.
func (g *Generator) GenerateClientConfig(ctx context.Context, client string) (string, error) {
	conn, err := g.dir.GetClientConnection(ctx, g.server, client)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: no client %s on server %s", artifact.ErrClientNotFound, client, g.server)
		}
		return "", err
	}

	server, err := g.dir.GetServer(ctx, g.server)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: server %s is not in the database", artifact.ErrClientNotFound, g.server)
		}
		return "", err
	}

	if conn.Client.PrivateKey.IsZero() {
		return "", fmt.Errorf("%w: %w: %s", artifact.ErrClientNotFound, ErrNoClientKey, client)
	}

	return g.render(server, conn), nil
}

func (g *Generator) render(server *types.Server, conn *types.ClientConnection) string {
	var b strings.Builder

	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", conn.Client.PrivateKey)
	fmt.Fprintf(&b, "Address = %s/%d\n", conn.Address, server.SubnetLen)
	fmt.Fprintf(&b, "DNS = %s\n", server.Address)

	b.WriteString("\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", g.publicKey)
	fmt.Fprintf(&b, "Endpoint = %s\n", server.Endpoint())
	fmt.Fprintf(&b, "AllowedIPs = %s\n", server.Subnet().Masked())
	if g.keepalive != nil {
		fmt.Fprintf(&b, "PersistentKeepalive = %d\n", *g.keepalive)
	}

	return b.String()
}

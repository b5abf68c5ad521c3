package artifact

import (
	"context"
	"errors"
	"fmt"
)

var ErrClientNotFound = errors.New("client not found")

// ClientConfigGenerator renders the tunnel configuration of a named client.
type ClientConfigGenerator interface {
	GenerateClientConfig(ctx context.Context, client string) (string, error)
}

// ClientConfig asks gen for the configuration of client. An unknown or empty name
// yields an error wrapping ErrClientNotFound; any other generator failure is
// returned wrapped as is so callers can tell the two apart.
func ClientConfig(ctx context.Context, gen ClientConfigGenerator, client string) (string, error) {
	if client == "" {
		return "", fmt.Errorf("%w: empty client name", ErrClientNotFound)
	}

	conf, err := gen.GenerateClientConfig(ctx, client)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return "", err
		}
		return "", fmt.Errorf("generating config for client %s: %w", client, err)
	}
	return conf, nil
}

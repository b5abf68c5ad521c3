package dnspub

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/caldog20/overlaymgr/config"
	"github.com/caldog20/overlaymgr/metrics"
	"github.com/caldog20/overlaymgr/store"
	"github.com/caldog20/overlaymgr/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleHosts = "# Servers\n" +
	"10.0.0.1             eu1.net.example\n" +
	"\n" +
	"# Clients\n" +
	"10.0.1.5             alice.net.example\n"

func newDirectory(t *testing.T) *store.MapStore {
	t.Helper()
	ctx := context.Background()
	s := store.NewMapStore()

	require.NoError(t, s.CreateServer(ctx, &types.Server{
		Name:          "eu1",
		Address:       netip.MustParseAddr("10.0.0.1"),
		SubnetAddr:    netip.MustParseAddr("10.0.0.0"),
		SubnetLen:     16,
		PublicAddress: netip.MustParseAddr("203.0.113.7"),
		PublicPort:    51820,
	}))
	alice := &types.Client{Name: "alice", PrivateKey: types.NewPrivateKey()}
	require.NoError(t, s.CreateClient(ctx, alice))
	require.NoError(t, s.CreateClientConnection(ctx, &types.ClientConnection{
		ClientID: alice.ID,
		Server:   "eu1",
		Address:  netip.MustParseAddr("10.0.1.5"),
	}))
	return s
}

func newConfig(path string) *config.ServerConfig {
	return &config.ServerConfig{
		Name:         "eu1",
		BaseDomain:   "net.example",
		DNSHostsFile: path,
	}
}

type fakeReloader struct {
	calls int
	err   error
}

func (f *fakeReloader) Reload(context.Context) error {
	f.calls++
	return f.err
}

type brokenDirectory struct{}

func (brokenDirectory) GetServers(context.Context) ([]types.Server, error) {
	return nil, errors.New("connection refused")
}

func (brokenDirectory) GetClients(context.Context, string) ([]types.ClientConnection, error) {
	return nil, errors.New("connection refused")
}

func TestPublish(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	reloader := &fakeReloader{}
	p := NewPublisher(newConfig(path), newDirectory(t), reloader, nil)

	res, err := p.Publish(context.Background())
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, exampleHosts, string(b))

	assert.Equal(t, path, res.Path)
	assert.Equal(t, len(exampleHosts), res.Size)
	assert.Equal(t, 2, res.Entries)
	assert.True(t, res.Changed)
	assert.Contains(t, res.Diff, "+10.0.1.5             alice.net.example")
	assert.NoError(t, res.ReloadErr)
	assert.Equal(t, 1, reloader.calls)
}

func TestPublishUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	reloader := &fakeReloader{}
	p := NewPublisher(newConfig(path), newDirectory(t), reloader, nil)

	_, err := p.Publish(context.Background())
	require.NoError(t, err)
	res, err := p.Publish(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Changed)
	assert.Empty(t, res.Diff)
	assert.Equal(t, 2, reloader.calls)
}

func TestPublishOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	require.NoError(t, os.WriteFile(path, []byte("stale content that is much longer than the new file\n"+exampleHosts+exampleHosts), 0644))

	p := NewPublisher(newConfig(path), newDirectory(t), nil, nil)
	res, err := p.Publish(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Contains(t, res.Diff, "-stale content")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, exampleHosts, string(b))
}

func TestPublishReloadFailureIsSoft(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	reloader := &fakeReloader{err: errors.New("no process found")}
	m := metrics.New()
	p := NewPublisher(newConfig(path), newDirectory(t), reloader, nil)
	p.SetMetrics(m)

	res, err := p.Publish(context.Background())
	require.NoError(t, err)
	assert.EqualError(t, res.ReloadErr, "no process found")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, exampleHosts, string(b))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DNSPublish.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DNSReloadFailures))
}

func TestPublishMissingResolverProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	reloader := NewSignalReloader("overlaymgr-test-no-such-resolver")
	p := NewPublisher(newConfig(path), newDirectory(t), reloader, nil)

	res, err := p.Publish(context.Background())
	require.NoError(t, err)
	assert.Error(t, res.ReloadErr)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestPublishWriteFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "hosts")
	reloader := &fakeReloader{}
	m := metrics.New()
	p := NewPublisher(newConfig(path), newDirectory(t), reloader, nil)
	p.SetMetrics(m)

	_, err := p.Publish(context.Background())
	require.Error(t, err)
	assert.Zero(t, reloader.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DNSPublish.WithLabelValues("error")))
}

func TestPublishDirectoryFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts")
	reloader := &fakeReloader{}
	p := NewPublisher(newConfig(path), brokenDirectory{}, reloader, nil)

	_, err := p.Publish(context.Background())
	require.ErrorContains(t, err, "connection refused")
	assert.Zero(t, reloader.calls)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

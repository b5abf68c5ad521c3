package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/caldog20/overlaymgr/artifact"
	"github.com/caldog20/overlaymgr/config"
	"github.com/caldog20/overlaymgr/metrics"
	"github.com/caldog20/overlaymgr/store"
	"github.com/caldog20/overlaymgr/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator map[string]string

func (g fakeGenerator) GenerateClientConfig(_ context.Context, client string) (string, error) {
	conf, ok := g[client]
	if !ok {
		return "", fmt.Errorf("%w: %s", artifact.ErrClientNotFound, client)
	}
	return conf, nil
}

type failingGenerator struct{}

func (failingGenerator) GenerateClientConfig(context.Context, string) (string, error) {
	return "", errors.New("database is locked")
}

type brokenDirectory struct{}

func (brokenDirectory) GetServers(context.Context) ([]types.Server, error) {
	return nil, errors.New("connection refused")
}

func (brokenDirectory) GetClients(context.Context, string) ([]types.ClientConnection, error) {
	return nil, errors.New("connection refused")
}

func newDirectory(t *testing.T) *store.MapStore {
	t.Helper()
	ctx := context.Background()
	s := store.NewMapStore()

	for _, srv := range []*types.Server{
		{Name: "eu1", Address: netip.MustParseAddr("10.0.0.1"), SubnetAddr: netip.MustParseAddr("10.0.0.0"), SubnetLen: 24,
			PublicAddress: netip.MustParseAddr("203.0.113.7"), PublicPort: 51820},
		{Name: "us1", Address: netip.MustParseAddr("10.1.0.1"), SubnetAddr: netip.MustParseAddr("10.1.0.0"), SubnetLen: 24,
			PublicAddress: netip.MustParseAddr("198.51.100.2"), PublicPort: 51821},
	} {
		require.NoError(t, s.CreateServer(ctx, srv))
	}
	for i, name := range []string{"carol", "alice", "bob"} {
		c := &types.Client{Name: name, PrivateKey: types.NewPrivateKey()}
		require.NoError(t, s.CreateClient(ctx, c))
		require.NoError(t, s.CreateClientConnection(ctx, &types.ClientConnection{
			ClientID: c.ID,
			Server:   "eu1",
			Address:  netip.AddrFrom4([4]byte{10, 0, 0, byte(10 + i)}),
		}))
	}
	return s
}

func newStaticRoot(t *testing.T) (base, root string) {
	t.Helper()
	base = t.TempDir()
	root = filepath.Join(base, "www")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "js"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>overlay</h1>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "js", "app.js"), []byte("console.log(1)"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "secret"), []byte("hunter2"), 0600))
	return base, root
}

func newTestServer(t *testing.T, dir artifact.Directory, gen artifact.ClientConfigGenerator) (*Server, string) {
	t.Helper()
	base, root := newStaticRoot(t)
	conf := &config.ServerConfig{
		Name:         "eu1",
		BaseDomain:   "net.example",
		WebStaticDir: root,
	}
	return NewServer(conf, dir, gen, nil), base
}

func get(s http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestData(t *testing.T) {
	s, _ := newTestServer(t, newDirectory(t), fakeGenerator{})

	rr := get(s, "/data")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))

	var status artifact.NetworkStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, "net.example", status.BaseDomain)

	require.Len(t, status.Servers, 2)
	assert.Equal(t, "eu1", status.Servers[0].Name)
	assert.Equal(t, "us1", status.Servers[1].Name)
	assert.Equal(t, uint16(51821), status.Servers[1].EndpointPort)

	require.Len(t, status.Clients, 3)
	assert.Equal(t, []string{"carol", "alice", "bob"},
		[]string{status.Clients[0].Name, status.Clients[1].Name, status.Clients[2].Name})
	assert.Equal(t, "10.0.0.11", status.Clients[1].Address)
}

func TestDataDirectoryFailure(t *testing.T) {
	m := metrics.New()
	s, _ := newTestServer(t, brokenDirectory{}, fakeGenerator{})
	s.SetMetrics(m)

	rr := get(s, "/data")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("data", "503")))
}

func TestConfEscapedName(t *testing.T) {
	gen := fakeGenerator{"alice": "alice conf", "al%69ce": "raw name conf"}
	s, _ := newTestServer(t, newDirectory(t), gen)

	rr := get(s, "/conf/al%69ce")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "raw name conf", rr.Body.String())
}

func TestConf(t *testing.T) {
	gen := fakeGenerator{"alice": "[Interface]\nAddress = 10.0.0.11/24\n"}
	s, _ := newTestServer(t, newDirectory(t), gen)

	rr := get(s, "/conf/alice")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, gen["alice"], rr.Body.String())
}

func TestConfNotFound(t *testing.T) {
	s, _ := newTestServer(t, newDirectory(t), fakeGenerator{"alice": "alice conf"})

	for _, path := range []string{"/conf/mallory", "/conf/", "/conf/al%69ce"} {
		t.Run(path, func(t *testing.T) {
			rr := get(s, path)
			assert.Equal(t, http.StatusNotFound, rr.Code)
			assert.Contains(t, rr.Body.String(), artifact.ErrClientNotFound.Error())
		})
	}
}

func TestConfGeneratorFailure(t *testing.T) {
	s, _ := newTestServer(t, newDirectory(t), failingGenerator{})

	rr := get(s, "/conf/alice")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "database is locked")
}

func TestStatic(t *testing.T) {
	s, _ := newTestServer(t, newDirectory(t), fakeGenerator{})

	rr := get(s, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "<h1>overlay</h1>", rr.Body.String())

	rr = get(s, "/js/app.js")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "console.log(1)", rr.Body.String())

	// /data and /conf/ are exact and prefix matches only
	rr = get(s, "/database")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = get(s, "/conf")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// escaped spellings of /data fall through to static files
	for _, path := range []string{"/%64ata", "/d%61ta"} {
		rr = get(s, path)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		assert.Empty(t, rr.Body.String(), path)
		assert.Empty(t, rr.Header().Get("Content-Type"), path)
	}
}

func TestStaticNotFound(t *testing.T) {
	s, _ := newTestServer(t, newDirectory(t), fakeGenerator{})

	for _, path := range []string{"/missing.html", "/js", "/js/"} {
		rr := get(s, path)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		assert.Empty(t, rr.Body.String(), path)
	}
}

func TestStaticTraversal(t *testing.T) {
	s, _ := newTestServer(t, newDirectory(t), fakeGenerator{})

	for _, path := range []string{"/../secret", "/../../etc/passwd", "/js/../../secret", "/./../secret"} {
		rr := get(s, path)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		assert.Empty(t, rr.Body.String(), path)
	}
}

func TestStaticSymlinkEscape(t *testing.T) {
	s, base := newTestServer(t, newDirectory(t), fakeGenerator{})
	root := filepath.Join(base, "www")

	require.NoError(t, os.Symlink(filepath.Join(base, "secret"), filepath.Join(root, "leak")))
	require.NoError(t, os.Symlink(filepath.Join(root, "index.html"), filepath.Join(root, "home.html")))

	rr := get(s, "/leak")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = get(s, "/home.html")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "<h1>overlay</h1>", rr.Body.String())
}

func TestStaticSiblingPrefix(t *testing.T) {
	s, base := newTestServer(t, newDirectory(t), fakeGenerator{})
	other := filepath.Join(base, "www-other")
	require.NoError(t, os.Mkdir(other, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(other, "index.html"), []byte("other"), 0644))

	rr := get(s, "/../www-other/index.html")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestStaticMissingRoot(t *testing.T) {
	conf := &config.ServerConfig{BaseDomain: "net.example", WebStaticDir: filepath.Join(t.TempDir(), "nope")}
	s := NewServer(conf, newDirectory(t), fakeGenerator{}, nil)

	rr := get(s, "/")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWithinRoot(t *testing.T) {
	tests := []struct {
		root, name string
		want       bool
	}{
		{"/srv/www", "/srv/www", true},
		{"/srv/www", "/srv/www/index.html", true},
		{"/srv/www", "/srv/www/a/b.js", true},
		{"/srv/www", "/srv/www-other/index.html", false},
		{"/srv/www", "/srv/wwwx", false},
		{"/srv/www", "/srv", false},
		{"/", "/etc/passwd", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, withinRoot(tt.root, tt.name), "%s in %s", tt.name, tt.root)
	}
}

func TestRequestMetrics(t *testing.T) {
	m := metrics.New()
	s, _ := newTestServer(t, newDirectory(t), fakeGenerator{})
	s.SetMetrics(m)

	get(s, "/")
	get(s, "/nope")
	get(s, "/conf/nobody")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("static", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("static", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("conf", "404")))
}

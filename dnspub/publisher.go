// Package dnspub writes the overlay hosts file and signals the resolver to reload it.
package dnspub

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/caldog20/overlaymgr/artifact"
	"github.com/caldog20/overlaymgr/config"
	"github.com/caldog20/overlaymgr/metrics"
	"github.com/pmezard/go-difflib/difflib"
)

// Result describes one publication. ReloadErr is the soft failure of the reload
// step; it never makes Publish return an error.
type Result struct {
	Path      string
	Size      int
	Entries   int
	Changed   bool
	Diff      string
	ReloadErr error
}

type Publisher struct {
	baseDomain string
	path       string
	dir        artifact.Directory
	reloader   Reloader
	logger     *slog.Logger
	metrics    *metrics.Registry
}

func NewPublisher(conf *config.ServerConfig, dir artifact.Directory, reloader Reloader, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		baseDomain: conf.BaseDomain,
		path:       conf.DNSHostsFile,
		dir:        dir,
		reloader:   reloader,
		logger:     logger.With("component", "dnspub"),
	}
}

func (p *Publisher) SetMetrics(m *metrics.Registry) {
	p.metrics = m
}

// Publish regenerates the hosts file from the directory, overwrites the file and
// asks the resolver to reload. Only directory and write failures are returned.
// Concurrent calls are not serialised.
func (p *Publisher) Publish(ctx context.Context) (*Result, error) {
	res, err := p.publish(ctx)
	if err != nil {
		p.metrics.ObservePublish(0, false, err)
		return nil, err
	}
	p.metrics.ObservePublish(res.Entries, res.ReloadErr != nil, nil)
	return res, nil
}

func (p *Publisher) publish(ctx context.Context) (*Result, error) {
	snap, err := artifact.Fetch(ctx, p.dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	for _, issue := range artifact.CheckAddressing(snap) {
		p.logger.Warn("addressing issue", "client", issue.Client, "server", issue.Server,
			"address", issue.Address, "reason", issue.Reason)
	}

	hosts := artifact.HostsFile(p.baseDomain, snap)
	p.logger.Debug("generated hosts file", "content", hosts)

	previous, err := os.ReadFile(p.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.logger.Warn("cannot read previous hosts file", "path", p.path, "error", err)
	}

	res := &Result{
		Path:    p.path,
		Size:    len(hosts),
		Entries: len(snap.Servers) + len(snap.Clients),
		Changed: string(previous) != hosts,
	}
	if res.Changed {
		res.Diff = diff(p.path, string(previous), hosts)
		if res.Diff != "" {
			p.logger.Debug("hosts file changed", "diff", res.Diff)
		}
	}

	if err := os.WriteFile(p.path, []byte(hosts), 0644); err != nil {
		return nil, fmt.Errorf("writing hosts file: %w", err)
	}
	p.logger.Info("hosts file written", "path", p.path, "entries", res.Entries, "changed", res.Changed)

	if p.reloader == nil {
		return res, nil
	}
	if err := p.reloader.Reload(ctx); err != nil {
		res.ReloadErr = err
		p.logger.Warn("dns resolver reload failed", "error", err)
	} else {
		p.logger.Info("dns resolver reloaded")
	}
	return res, nil
}

func diff(path, a, b string) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: path,
		ToFile:   path,
		Context:  1,
	})
	if err != nil {
		return ""
	}
	return strings.TrimRight(text, "\n")
}

// Package ipam hands out overlay addresses inside a server subnet.
package ipam

import (
	"errors"
	"net/netip"

	"github.com/caldog20/overlaymgr/types"
	"go4.org/netipx"
)

var ErrNoAvailableIps = errors.New("no free ip addresses in server subnet")

// IPAM allocates from a snapshot of the used addresses; it is not safe for
// concurrent use.
type IPAM struct {
	prefix       netip.Prefix
	allocatedIPs netipx.IPSetBuilder
	reserved     *netipx.IPSet
	last         netip.Addr
}

// New returns an allocator for server's subnet. The server address and the
// addresses in used are never handed out.
func New(server *types.Server, used []netip.Addr) (*IPAM, error) {
	prefix := server.Subnet().Masked()
	if !prefix.IsValid() {
		return nil, errors.New("server has no valid subnet")
	}

	var b netipx.IPSetBuilder
	for _, ip := range used {
		if ip.IsValid() {
			b.Add(ip)
		}
	}

	var r netipx.IPSetBuilder
	r.Add(prefix.Addr())
	r.Add(server.Address)
	if prefix.Addr().Is4() && prefix.Bits() <= 30 {
		r.Add(netipx.PrefixLastIP(prefix))
	}
	reserved, err := r.IPSet()
	if err != nil {
		return nil, err
	}

	return &IPAM{
		prefix:       prefix,
		allocatedIPs: b,
		reserved:     reserved,
		last:         prefix.Addr(),
	}, nil
}

func (i *IPAM) Allocate() (netip.Addr, error) {
	ipset, err := i.allocatedIPs.IPSet()
	if err != nil {
		return netip.Addr{}, err
	}

	next := i.last.Next()
	for next.IsValid() && (ipset.Contains(next) || i.reserved.Contains(next)) {
		next = next.Next()
	}

	if !next.IsValid() || !i.prefix.Contains(next) {
		return netip.Addr{}, ErrNoAvailableIps
	}

	i.last = next
	i.allocatedIPs.Add(next)
	return next, nil
}

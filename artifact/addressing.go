package artifact

import (
	"fmt"
	"net/netip"

	"go4.org/netipx"
)

// AddressingIssue describes a client connection whose address does not fit the
// server it is attached to. Issues are reported, never fatal: the directory owns
// the data and the artifacts render whatever it holds.
type AddressingIssue struct {
	Client  string
	Server  string
	Address netip.Addr
	Reason  string
}

func (i AddressingIssue) String() string {
	return fmt.Sprintf("client %s on server %s (%s): %s", i.Client, i.Server, i.Address, i.Reason)
}

// CheckAddressing flags connections that reference an unknown server, sit outside
// the server subnet, take the subnet's network or broadcast address, or share an
// address with another host of the snapshot.
func CheckAddressing(snap *Snapshot) []AddressingIssue {
	var issues []AddressingIssue

	subnets := make(map[string]netip.Prefix, len(snap.Servers))
	reserved := make(map[string]netipx.IPRange, len(snap.Servers))
	seen := make(map[netip.Addr]string)

	for _, s := range snap.Servers {
		seen[s.Address] = s.Name

		prefix := s.Subnet()
		if !prefix.IsValid() {
			continue
		}
		subnets[s.Name] = prefix.Masked()
		if prefix.Addr().Is4() && prefix.Bits() <= 30 {
			reserved[s.Name] = netipx.RangeOfPrefix(prefix.Masked())
		}
	}

	for _, c := range snap.Clients {
		issue := AddressingIssue{Client: c.Client.Name, Server: c.Server, Address: c.Address}

		if owner, dup := seen[c.Address]; dup {
			issue.Reason = "address already used by " + owner
			issues = append(issues, issue)
		} else {
			seen[c.Address] = c.Client.Name
		}

		subnet, known := subnets[c.Server]
		if !known {
			if !hasServer(snap, c.Server) {
				issue.Reason = "unknown server"
				issues = append(issues, issue)
			}
			continue
		}
		if !subnet.Contains(c.Address) {
			issue.Reason = "address outside server subnet"
			issues = append(issues, issue)
			continue
		}
		if r, ok := reserved[c.Server]; ok && (c.Address == r.From() || c.Address == r.To()) {
			issue.Reason = "network or broadcast address of server subnet"
			issues = append(issues, issue)
		}
	}
	return issues
}

func hasServer(snap *Snapshot, name string) bool {
	for _, s := range snap.Servers {
		if s.Name == name {
			return true
		}
	}
	return false
}

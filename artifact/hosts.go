package artifact

import (
	"fmt"
	"strings"
)

const hostsAddressWidth = 20

// HostsFile renders the hosts file for a snapshot. Entries keep the directory order
// so that regenerating an unchanged directory produces an identical file.
func HostsFile(baseDomain string, snap *Snapshot) string {
	var b strings.Builder

	b.WriteString("# Servers\n")
	for _, s := range snap.Servers {
		writeHostsEntry(&b, s.Address.String(), s.Name, baseDomain)
	}

	b.WriteString("\n# Clients\n")
	for _, c := range snap.Clients {
		writeHostsEntry(&b, c.Address.String(), c.Client.Name, baseDomain)
	}

	return b.String()
}

// address column is padded for readability only, resolvers split on whitespace
func writeHostsEntry(b *strings.Builder, address, name, baseDomain string) {
	fmt.Fprintf(b, "%-*s %s.%s\n", hostsAddressWidth, address, name, baseDomain)
}

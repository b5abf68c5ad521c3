package main

import (
	"fmt"
	"net/netip"

	"github.com/caldog20/overlaymgr/ipam"
	"github.com/caldog20/overlaymgr/types"
	"github.com/miekg/dns"
	"github.com/spf13/cobra"
)

func newAddServerCmd(opts *options) *cobra.Command {
	var address, subnet, endpoint string

	cmd := &cobra.Command{
		Use:   "add-server <name>",
		Short: "Register a server of the overlay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := checkHostname(name); err != nil {
				return err
			}
			server, err := parseServer(name, address, subnet, endpoint)
			if err != nil {
				return err
			}

			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.store.CreateServer(cmd.Context(), server); err != nil {
				return fmt.Errorf("creating server %s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", server.Name, server.Address, server.Subnet())
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "overlay address of the server")
	cmd.Flags().StringVar(&subnet, "subnet", "", "client subnet of the server, e.g. 10.0.0.0/24")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "public address and port, e.g. 203.0.113.7:51820")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("subnet")
	_ = cmd.MarkFlagRequired("endpoint")
	return cmd
}

func parseServer(name, address, subnet, endpoint string) (*types.Server, error) {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	prefix, err := netip.ParsePrefix(subnet)
	if err != nil {
		return nil, fmt.Errorf("invalid subnet: %w", err)
	}
	prefix = prefix.Masked()
	if !prefix.Contains(addr) {
		return nil, fmt.Errorf("address %s is outside subnet %s", addr, prefix)
	}
	ep, err := netip.ParseAddrPort(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	return &types.Server{
		Name:          name,
		Address:       addr,
		SubnetAddr:    prefix.Addr(),
		SubnetLen:     uint8(prefix.Bits()),
		PublicAddress: ep.Addr(),
		PublicPort:    ep.Port(),
	}, nil
}

func newAddClientCmd(opts *options) *cobra.Command {
	var serverName string

	cmd := &cobra.Command{
		Use:   "add-client <name>",
		Short: "Create a client with a fresh key and the next free address on a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := checkHostname(name); err != nil {
				return err
			}

			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			if serverName == "" {
				serverName = e.conf.Name
			}
			server, err := e.store.GetServer(ctx, serverName)
			if err != nil {
				return fmt.Errorf("server %s: %w", serverName, err)
			}
			conns, err := e.store.GetClients(ctx, serverName)
			if err != nil {
				return err
			}
			used := make([]netip.Addr, 0, len(conns))
			for _, c := range conns {
				used = append(used, c.Address)
			}

			pool, err := ipam.New(server, used)
			if err != nil {
				return err
			}
			addr, err := pool.Allocate()
			if err != nil {
				return err
			}

			client := &types.Client{Name: name, PrivateKey: types.NewPrivateKey()}
			if err := e.store.CreateClient(ctx, client); err != nil {
				return fmt.Errorf("creating client %s: %w", name, err)
			}
			conn := &types.ClientConnection{ClientID: client.ID, Server: server.Name, Address: addr}
			if err := e.store.CreateClientConnection(ctx, conn); err != nil {
				return fmt.Errorf("connecting client %s to %s: %w", name, server.Name, err)
			}

			e.logger.Info("client created", "client", name, "server", server.Name, "address", addr)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", name, addr, server.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverName, "server", "", "server to attach the client to (default: the local server)")
	return cmd
}

// names become hostnames under base_domain
func checkHostname(name string) error {
	if _, ok := dns.IsDomainName(name); !ok || name == "" || dns.IsFqdn(name) {
		return fmt.Errorf("%q is not a valid host name", name)
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '.') {
			return fmt.Errorf("%q is not a valid host name", name)
		}
	}
	return nil
}

package artifact

import (
	"context"
	"encoding/json"
)

type NetworkStatusServer struct {
	Name         string `json:"name"`
	Subnet       string `json:"subnet"`
	SubnetLen    uint8  `json:"subnet_len"`
	Address      string `json:"address"`
	Endpoint     string `json:"endpoint"`
	EndpointPort uint16 `json:"endpoint_port"`
}

type NetworkStatusClient struct {
	Name    string `json:"name"`
	Server  string `json:"server"`
	Address string `json:"address"`
}

// NetworkStatus is the document served on /data.
type NetworkStatus struct {
	Servers    []NetworkStatusServer `json:"servers"`
	Clients    []NetworkStatusClient `json:"clients"`
	BaseDomain string                `json:"base_domain"`
}

func NewNetworkStatus(baseDomain string, snap *Snapshot) *NetworkStatus {
	status := &NetworkStatus{
		Servers:    make([]NetworkStatusServer, 0, len(snap.Servers)),
		Clients:    make([]NetworkStatusClient, 0, len(snap.Clients)),
		BaseDomain: baseDomain,
	}

	for _, s := range snap.Servers {
		status.Servers = append(status.Servers, NetworkStatusServer{
			Name:         s.Name,
			Subnet:       s.SubnetAddr.String(),
			SubnetLen:    s.SubnetLen,
			Address:      s.Address.String(),
			Endpoint:     s.PublicAddress.String(),
			EndpointPort: s.PublicPort,
		})
	}
	for _, c := range snap.Clients {
		status.Clients = append(status.Clients, NetworkStatusClient{
			Name:    c.Client.Name,
			Server:  c.Server,
			Address: c.Address.String(),
		})
	}
	return status
}

// Status reads the whole directory and builds its status document.
func Status(ctx context.Context, dir Directory, baseDomain string) (*NetworkStatus, error) {
	snap, err := Fetch(ctx, dir)
	if err != nil {
		return nil, err
	}
	return NewNetworkStatus(baseDomain, snap), nil
}

// MarshalPretty encodes the document as indented JSON.
func (s *NetworkStatus) MarshalPretty() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

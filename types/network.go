package types

import (
	"net/netip"
	"time"
)

// Server is a relay/endpoint node of the overlay, keyed by name.
type Server struct {
	Name          string     `gorm:"primaryKey" json:"name"`
	Address       netip.Addr `gorm:"serializer:json" json:"address"`
	SubnetAddr    netip.Addr `gorm:"serializer:json" json:"subnet_addr"`
	SubnetLen     uint8      `json:"subnet_len"`
	PublicAddress netip.Addr `gorm:"serializer:json" json:"public_address"`
	PublicPort    uint16     `json:"public_port"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) Subnet() netip.Prefix {
	return netip.PrefixFrom(s.SubnetAddr, int(s.SubnetLen))
}

func (s *Server) Endpoint() netip.AddrPort {
	return netip.AddrPortFrom(s.PublicAddress, s.PublicPort)
}

// Client is a peer of the overlay. Its addresses live on its connections.
type Client struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string     `gorm:"uniqueIndex" json:"name"`
	PrivateKey PrivateKey `gorm:"serializer:json" json:"private_key"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClientConnection attaches a client to a server with its own overlay address.
// Server holds a Server.Name; it is not guaranteed to reference an existing server.
type ClientConnection struct {
	ID       uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientID uint64     `gorm:"index" json:"client_id"`
	Client   Client     `json:"-"`
	Server   string     `gorm:"index" json:"server"`
	Address  netip.Addr `gorm:"serializer:json" json:"address"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

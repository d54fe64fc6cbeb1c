// Package peer is the public entry point to the peer registry.
package peer

import (
	"fmt"

	"github.com/leandrodaf/stagewire/internal/metrics"
	"github.com/leandrodaf/stagewire/internal/peer"
	"github.com/leandrodaf/stagewire/sdk/contracts"
)

type (
	Registry = peer.Registry
	Peer     = peer.Peer
	Store    = peer.Store
)

// NewRegistry creates an empty registry. WithPeerConfig injects the clock
// and resolver.
func NewRegistry(opts ...contracts.Option) (*Registry, error) {
	options := applyDefaultOptions(opts...)

	m, err := metrics.New(options.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return peer.NewRegistry(options.Peers.Clock, options.Peers.Resolver, options.Logger, m), nil
}

// NewSystemResolver returns the reverse-DNS and ARP backed resolver.
func NewSystemResolver(log contracts.Logger) contracts.Resolver {
	return peer.NewSystemResolver(log)
}

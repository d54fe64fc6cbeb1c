// Package peer keeps the live view of other nodes on the show network.
package peer

import (
	"time"

	"github.com/leandrodaf/stagewire/sdk/contracts"
)

// Persisted attribute keys.
const (
	AttrHostname   = "hostname"
	AttrAddressing = "addressing"
	AttrMAC        = "mac"
)

// Peer is one network participant, keyed by its instance id.
type Peer struct {
	InstanceID   string
	Role         contracts.Role
	IP           string
	Addressing   string // Addressing mode as announced, e.g. "dhcp" or "static".
	MAC          string
	Hostname     string
	LastSeen     time.Time
	LastAnnounce time.Time
	Features     contracts.Features
}

// Save returns the identity attributes. Live fields are not included.
func (p Peer) Save() map[string]string {
	return map[string]string{
		AttrHostname:   p.Hostname,
		AttrAddressing: p.Addressing,
		AttrMAC:        p.MAC,
	}
}

// Load sets the identity attributes present in attrs.
func (p *Peer) Load(attrs map[string]string) {
	if v, ok := attrs[AttrHostname]; ok {
		p.Hostname = v
	}
	if v, ok := attrs[AttrAddressing]; ok {
		p.Addressing = v
	}
	if v, ok := attrs[AttrMAC]; ok {
		p.MAC = v
	}
}

// Latency is the delay between the last announce and the last sighting
// in milliseconds, or -1 when undefined. Masters announce on their own
// schedule and never have a latency.
func (p Peer) Latency() float64 {
	if p.Role == contracts.RoleMaster || p.LastAnnounce.IsZero() || p.LastAnnounce.After(p.LastSeen) {
		return -1
	}
	return float64(p.LastSeen.Sub(p.LastAnnounce).Microseconds()) / 1000
}

// IsOnline reports whether the peer was seen less than threshold before now.
func (p Peer) IsOnline(now time.Time, threshold time.Duration) bool {
	if p.LastSeen.IsZero() {
		return false
	}
	return now.Sub(p.LastSeen).Microseconds() < threshold.Microseconds()
}

package peer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/leandrodaf/stagewire/internal/metrics"
	"github.com/leandrodaf/stagewire/sdk/contracts"
)

// resolveTimeout bounds one hostname or MAC lookup.
const resolveTimeout = 2 * time.Second

// Registry is the table of known peers. Every method takes the same lock;
// name resolution happens outside it.
type Registry struct {
	clock    contracts.Clock
	resolver contracts.Resolver
	logger   contracts.Logger
	metrics  *metrics.Metrics

	mu    sync.Mutex
	peers map[string]*Peer
}

// NewRegistry creates an empty registry. A nil clock uses the system
// clock; a nil resolver disables hostname and MAC lookups.
func NewRegistry(clock contracts.Clock, resolver contracts.Resolver, logger contracts.Logger, m *metrics.Metrics) *Registry {
	if clock == nil {
		clock = contracts.SystemClock{}
	}
	return &Registry{
		clock:    clock,
		resolver: resolver,
		logger:   logger,
		metrics:  m,
		peers:    make(map[string]*Peer),
	}
}

// Upsert records a packet from instanceID. A new peer is created on first
// sight; otherwise LastSeen, role, features and IP are refreshed. The MAC
// is looked up again whenever the IP changes.
func (r *Registry) Upsert(ctx context.Context, instanceID, ip string, role contracts.Role, features contracts.Features, now time.Time) {
	r.mu.Lock()
	p, ok := r.peers[instanceID]
	if !ok {
		p = &Peer{InstanceID: instanceID}
		r.peers[instanceID] = p
		r.logger.Info("peer discovered",
			r.logger.Field().String("instance", instanceID),
			r.logger.Field().String("ip", ip),
			r.logger.Field().String("role", role.String()))
	}
	ipChanged := p.IP != ip
	p.IP = ip
	p.Role = role
	p.Features = features
	p.LastSeen = now
	if ipChanged && ok {
		r.logger.Info("peer address changed",
			r.logger.Field().String("instance", instanceID),
			r.logger.Field().String("ip", ip))
	}
	r.mu.Unlock()

	if ipChanged {
		r.refreshMAC(ctx, instanceID, ip)
	}
}

func (r *Registry) refreshMAC(ctx context.Context, instanceID, ip string) {
	if r.resolver == nil || ip == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	mac, err := r.resolver.LookupMAC(ctx, ip)
	if err != nil || mac == "" {
		r.logger.Debug("MAC lookup failed",
			r.logger.Field().String("ip", ip),
			r.logger.Field().Error("error", err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// The peer may have moved again while we were resolving.
	if p, ok := r.peers[instanceID]; ok && p.IP == ip {
		p.MAC = mac
	}
}

// RecordAnnounce sets LastAnnounce only. Unknown instances are ignored.
func (r *Registry) RecordAnnounce(instanceID string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[instanceID]; ok {
		p.LastAnnounce = now
	}
}

// RecordPing stamps LastAnnounce on every known peer that answers
// pings, marking the moment a ping went out. Masters are skipped.
func (r *Registry) RecordPing(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.peers {
		if p.Role != contracts.RoleMaster {
			p.LastAnnounce = now
		}
	}
}

// SetAddressing records the announced addressing mode.
func (r *Registry) SetAddressing(instanceID, mode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[instanceID]; ok {
		p.Addressing = mode
	}
}

// Latency returns the peer latency in milliseconds, -1 when undefined or
// the peer is unknown.
func (r *Registry) Latency(instanceID string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[instanceID]
	if !ok {
		return -1
	}
	return p.Latency()
}

// IsOnline reports whether now-LastSeen < thresholdMs. The comparison is
// done in microseconds.
func (r *Registry) IsOnline(instanceID string, thresholdMs int64) bool {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[instanceID]
	if !ok {
		return false
	}
	return p.IsOnline(now, time.Duration(thresholdMs)*time.Millisecond)
}

// Hostname returns the peer's hostname, resolving and caching it on first
// use. Lookup failures return the last known value.
func (r *Registry) Hostname(ctx context.Context, instanceID string) string {
	r.mu.Lock()
	p, ok := r.peers[instanceID]
	if !ok {
		r.mu.Unlock()
		return ""
	}
	host, ip := p.Hostname, p.IP
	r.mu.Unlock()

	if host != "" || r.resolver == nil || ip == "" {
		return host
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()
	resolved, err := r.resolver.LookupHostname(ctx, ip)
	if err != nil || resolved == "" {
		r.logger.Debug("hostname lookup failed",
			r.logger.Field().String("ip", ip),
			r.logger.Field().Error("error", err))
		return host
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[instanceID]; ok {
		if p.Hostname == "" {
			p.Hostname = resolved
		}
		return p.Hostname
	}
	return resolved
}

// Peer returns a copy of the peer.
func (r *Registry) Peer(instanceID string) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[instanceID]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// Peers returns copies of every peer ordered by instance id.
func (r *Registry) Peers() []Peer {
	r.mu.Lock()
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, *p)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out
}

// OnlinePeers returns the peers seen within threshold, optionally limited
// to the given roles, and refreshes the peer gauges.
func (r *Registry) OnlinePeers(threshold time.Duration, roles ...contracts.Role) []Peer {
	now := r.clock.Now()
	all := r.Peers()

	var online []Peer
	count := 0
	for _, p := range all {
		if !p.IsOnline(now, threshold) {
			continue
		}
		count++
		if len(roles) == 0 || hasRole(roles, p.Role) {
			online = append(online, p)
		}
	}
	r.metrics.Peers(len(all), count)
	return online
}

func hasRole(roles []contracts.Role, role contracts.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Evict removes a peer. The registry never evicts on its own.
func (r *Registry) Evict(instanceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.peers[instanceID]
	delete(r.peers, instanceID)
	return ok
}

// SavePeer returns the persisted attributes of one peer.
func (r *Registry) SavePeer(instanceID string) (map[string]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[instanceID]
	if !ok {
		return nil, false
	}
	return p.Save(), true
}

// LoadPeer applies persisted attributes, creating the peer if needed. A
// peer created this way stays offline until live traffic arrives.
func (r *Registry) LoadPeer(instanceID string, attrs map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[instanceID]
	if !ok {
		p = &Peer{InstanceID: instanceID}
		r.peers[instanceID] = p
	}
	p.Load(attrs)
}

// Snapshot returns the persisted attributes of every peer.
func (r *Registry) Snapshot() map[string]map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]map[string]string, len(r.peers))
	for id, p := range r.peers {
		out[id] = p.Save()
	}
	return out
}

// Restore loads every entry of a snapshot.
func (r *Registry) Restore(snapshot map[string]map[string]string) {
	for id, attrs := range snapshot {
		r.LoadPeer(id, attrs)
	}
}

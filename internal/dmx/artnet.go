package dmx

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/leandrodaf/stagewire/sdk/contracts"
)

// Art-Net constants.
const (
	ArtNetPort     = 6454
	ArtNetClassID  = "artnet"
	artProtocolVer = 14
	opPoll         = 0x2000
	opPollReply    = 0x2100
	opDMX          = 0x5000
	artDMXHeader   = 18
	pollReplyMin   = 44
)

var artNetID = []byte("Art-Net\x00")

// ArtNet sends ArtDMX packets over UDP to one node or a broadcast address.
type ArtNet struct {
	mu            sync.Mutex
	address       string
	universes     int
	startUniverse uint16
	conn          *net.UDPConn
	target        *net.UDPAddr
	seq           uint8
}

// NewArtNet creates an Art-Net family. address is "host" or "host:port".
func NewArtNet(address string, universes int, startUniverse uint16) *ArtNet {
	if universes < 1 {
		universes = 1
	}
	return &ArtNet{address: address, universes: universes, startUniverse: startUniverse}
}

// Connect opens the UDP socket.
func (a *ArtNet) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		return nil
	}

	addr := a.address
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(ArtNetPort))
	}
	var resolver net.Resolver
	ips, err := resolver.LookupNetIP(ctx, "ip4", hostOf(addr))
	if err != nil {
		return fmt.Errorf("resolve art-net node %q: %w", a.address, err)
	}
	if len(ips) == 0 {
		return fmt.Errorf("resolve art-net node %q: no IPv4 address", a.address)
	}
	_, portStr, _ := net.SplitHostPort(addr)
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("%w: port %q", ErrBadSetting, portStr)
	}

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return fmt.Errorf("open art-net socket: %w", err)
	}
	a.conn = conn
	a.target = &net.UDPAddr{IP: ips[0].AsSlice(), Port: port}
	a.seq = 0
	return nil
}

func hostOf(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}

// Transmit sends one ArtDMX packet per supported universe.
func (a *ArtNet) Transmit(frame contracts.Frame) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return ErrNotConnected
	}

	for i := 0; i < a.universes; i++ {
		levels := frame.Universe(i)
		pkt := BuildArtDMX(a.nextSeq(), a.startUniverse+uint16(i), levels[:])
		if _, err := a.conn.WriteToUDP(pkt, a.target); err != nil {
			return fmt.Errorf("send ArtDMX universe %d: %w", a.startUniverse+uint16(i), err)
		}
	}
	return nil
}

// nextSeq cycles 1..255; zero would disable sequencing at the receiver.
func (a *ArtNet) nextSeq() uint8 {
	a.seq++
	if a.seq == 0 {
		a.seq = 1
	}
	return a.seq
}

// SupportedUniverses returns the number of consecutive universes sent.
func (a *ArtNet) SupportedUniverses() int { return a.universes }

// Save returns address, universes and start_universe.
func (a *ArtNet) Save() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]string{
		"address":        a.address,
		"universes":      strconv.Itoa(a.universes),
		"start_universe": strconv.Itoa(int(a.startUniverse)),
	}
}

// Load applies settings produced by Save. Missing keys keep their value.
func (a *ArtNet) Load(settings map[string]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if v, ok := settings["address"]; ok && v != "" {
		a.address = v
	}
	if v, ok := settings["universes"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("%w: universes %q", ErrBadSetting, v)
		}
		a.universes = n
	}
	if v, ok := settings["start_universe"]; ok {
		n, err := strconv.ParseUint(v, 10, 15)
		if err != nil {
			return fmt.Errorf("%w: start_universe %q", ErrBadSetting, v)
		}
		a.startUniverse = uint16(n)
	}
	return nil
}

// Close closes the socket.
func (a *ArtNet) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}

// BuildArtDMX frames levels as an ArtDMX packet. universe is the 15-bit
// port address (net in the high byte, sub-net/universe in the low byte).
func BuildArtDMX(seq uint8, universe uint16, levels []byte) []byte {
	n := len(levels)
	if n > contracts.UniverseSize {
		n = contracts.UniverseSize
	}
	pkt := make([]byte, artDMXHeader+n)
	copy(pkt, artNetID)
	pkt[8], pkt[9] = byte(opDMX&0xFF), byte(opDMX>>8)
	pkt[10], pkt[11] = 0x00, artProtocolVer
	pkt[12], pkt[13] = seq, 0x00
	pkt[14], pkt[15] = byte(universe&0xFF), byte((universe>>8)&0x7F)
	pkt[16], pkt[17] = byte(n>>8), byte(n)
	copy(pkt[artDMXHeader:], levels[:n])
	return pkt
}

// BuildArtPoll returns an ArtPoll asking nodes to reply.
func BuildArtPoll() []byte {
	pkt := make([]byte, 14)
	copy(pkt, artNetID)
	pkt[8], pkt[9] = byte(opPoll&0xFF), byte(opPoll>>8)
	pkt[10], pkt[11] = 0x00, artProtocolVer
	pkt[12] = 0x06
	return pkt
}

// ParsePollReply extracts node address and short name from an
// ArtPollReply.
func ParsePollReply(pkt []byte) (ip net.IP, name string, ok bool) {
	if len(pkt) < pollReplyMin || !bytes.Equal(pkt[:8], artNetID) {
		return nil, "", false
	}
	if uint16(pkt[8])|uint16(pkt[9])<<8 != opPollReply {
		return nil, "", false
	}
	short := pkt[26:44]
	if i := bytes.IndexByte(short, 0); i >= 0 {
		short = short[:i]
	}
	return net.IPv4(pkt[10], pkt[11], pkt[12], pkt[13]), string(short), true
}

// ArtNetNode is a statically configured Art-Net destination.
type ArtNetNode struct {
	Name          string
	Address       string
	Universes     int
	StartUniverse uint16
}

// ArtNetClass reports configured nodes and, when PollTimeout is set,
// nodes answering an ArtPoll broadcast.
type ArtNetClass struct {
	Nodes       []ArtNetNode
	Broadcast   string        // ArtPoll target, 255.255.255.255 when empty.
	PollTimeout time.Duration // Zero disables polling.
	Universes   int           // Universes for polled nodes.
}

// Name returns "artnet".
func (c *ArtNetClass) Name() string { return ArtNetClassID }

// Discover lists configured nodes followed by polled ones.
func (c *ArtNetClass) Discover(ctx context.Context) ([]Descriptor, error) {
	descs := make([]Descriptor, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		descs = append(descs, Descriptor{
			Class:    ArtNetClassID,
			NativeID: n.Address,
			Name:     n.Name,
			Settings: map[string]string{
				"address":        n.Address,
				"universes":      strconv.Itoa(max(n.Universes, 1)),
				"start_universe": strconv.Itoa(int(n.StartUniverse)),
			},
		})
	}
	if c.PollTimeout <= 0 {
		return descs, nil
	}

	polled, err := c.poll(ctx)
	if err != nil {
		return descs, err
	}
	return append(descs, polled...), nil
}

func (c *ArtNetClass) poll(ctx context.Context) ([]Descriptor, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: ArtNetPort})
	if err != nil {
		return nil, fmt.Errorf("open art-poll socket: %w", err)
	}
	defer conn.Close()

	bcast := net.IPv4bcast
	if ip := net.ParseIP(c.Broadcast); ip != nil {
		bcast = ip
	}
	if _, err := conn.WriteToUDP(BuildArtPoll(), &net.UDPAddr{IP: bcast, Port: ArtNetPort}); err != nil {
		return nil, fmt.Errorf("send ArtPoll: %w", err)
	}

	deadline := time.Now().Add(c.PollTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	var descs []Descriptor
	buf := make([]byte, 1024)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}
		ip, name, ok := ParsePollReply(buf[:n])
		if !ok {
			continue
		}
		descs = append(descs, Descriptor{
			Class:    ArtNetClassID,
			NativeID: ip.String(),
			Name:     name,
			Settings: map[string]string{
				"address":   ip.String(),
				"universes": strconv.Itoa(max(c.Universes, 1)),
			},
		})
	}
	return descs, nil
}

// New builds an ArtNet family from the descriptor settings.
func (c *ArtNetClass) New(desc Descriptor) (Family, error) {
	a := NewArtNet(desc.NativeID, 1, 0)
	if err := a.Load(desc.Settings); err != nil {
		return nil, err
	}
	return a, nil
}

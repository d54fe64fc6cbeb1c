// Package announce carries node announcements over UDP and feeds them
// into the peer registry.
package announce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/stagewire/internal/peer"
	"github.com/leandrodaf/stagewire/sdk/contracts"
	"golang.org/x/time/rate"
)

// DefaultPort is the UDP port announcements are sent to.
const DefaultPort = 7400

// maxPacket is larger than any announcement we produce.
const maxPacket = 2048

// Errors returned by Decode.
var (
	ErrNoInstance  = errors.New("announcement has no instance id")
	ErrBadInstance = errors.New("announcement instance id is not a UUID")
)

// Packet is the JSON announcement body.
type Packet struct {
	Instance   string             `json:"instance"`
	Role       string             `json:"role"`
	Features   contracts.Features `json:"features"`
	Announce   bool               `json:"announce"` // Ping; non-master receivers answer it.
	Addressing string             `json:"addressing,omitempty"`
}

// Encode returns the wire form of p.
func Encode(p Packet) ([]byte, error) {
	return json.Marshal(p)
}

// Decode parses a wire packet.
func Decode(b []byte) (Packet, error) {
	var p Packet
	if err := json.Unmarshal(b, &p); err != nil {
		return Packet{}, fmt.Errorf("decode announcement: %w", err)
	}
	if p.Instance == "" {
		return Packet{}, ErrNoInstance
	}
	if !peer.ValidInstanceID(p.Instance) {
		return Packet{}, fmt.Errorf("%w: %q", ErrBadInstance, p.Instance)
	}
	return p, nil
}

// Sink receives decoded announcements. *peer.Registry implements it.
type Sink interface {
	Upsert(ctx context.Context, instanceID, ip string, role contracts.Role, features contracts.Features, now time.Time)
	SetAddressing(instanceID, mode string)
}

// Pinger is told when a ping leaves. *peer.Registry implements it.
type Pinger interface {
	RecordPing(now time.Time)
}

// Listener reads announcements from a UDP socket and answers pings.
type Listener struct {
	conn   net.PacketConn
	sink   Sink
	clock  contracts.Clock
	logger contracts.Logger
	self   string
	badLog *rate.Limiter
	reply  atomic.Pointer[Packet]
}

// Listen binds addr ("host:port", ":7400"). Packets carrying self as the
// instance id are dropped.
func Listen(addr, self string, sink Sink, clock contracts.Clock, logger contracts.Logger) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for announcements on %s: %w", addr, err)
	}
	if clock == nil {
		clock = contracts.SystemClock{}
	}
	return &Listener{
		conn:   conn,
		sink:   sink,
		clock:  clock,
		logger: logger,
		self:   self,
		badLog: rate.NewLimiter(rate.Every(time.Minute), 3),
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.conn.LocalAddr() }

// ReplyAs makes the listener answer pings with p. A master never answers.
func (l *Listener) ReplyAs(p Packet) {
	p.Announce = false
	l.reply.Store(&p)
}

// Close closes the socket. Serve closes it on its own when ctx ends.
func (l *Listener) Close() error { return l.conn.Close() }

// Serve reads until ctx is done or the socket fails, then closes it.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { l.conn.Close() })
	defer stop()
	defer l.conn.Close()

	buf := make([]byte, maxPacket)
	for {
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read announcement: %w", err)
		}
		l.handle(ctx, buf[:n], from)
	}
}

func (l *Listener) handle(ctx context.Context, b []byte, from net.Addr) {
	p, err := Decode(b)
	if err != nil {
		l.warn("dropping announcement", from, err)
		return
	}
	if p.Instance == l.self {
		return
	}

	ip := from.String()
	if udp, ok := from.(*net.UDPAddr); ok {
		ip = udp.IP.String()
	}

	l.sink.Upsert(ctx, p.Instance, ip, contracts.ParseRole(p.Role), p.Features, l.clock.Now())
	if p.Addressing != "" {
		l.sink.SetAddressing(p.Instance, p.Addressing)
	}
	if p.Announce {
		l.answer(from)
	}
}

func (l *Listener) answer(to net.Addr) {
	r := l.reply.Load()
	if r == nil || contracts.ParseRole(r.Role) == contracts.RoleMaster {
		return
	}
	b, err := Encode(*r)
	if err != nil {
		l.warn("encoding ping reply", to, err)
		return
	}
	if _, err := l.conn.WriteTo(b, to); err != nil {
		l.warn("ping reply failed", to, err)
	}
}

func (l *Listener) warn(msg string, peerAddr net.Addr, err error) {
	if !l.badLog.Allow() {
		return
	}
	l.logger.Warn(msg,
		l.logger.Field().String("peer", peerAddr.String()),
		l.logger.Field().Error("error", err))
}

// Announcer sends this node's packet. Pings are stamped on the Pinger
// before they leave so that the reply can be timed.
type Announcer struct {
	conn   net.PacketConn
	owned  bool
	target net.Addr
	packet Packet
	pinger Pinger
	clock  contracts.Clock
	logger contracts.Logger
}

// NewAnnouncer prepares to send p to target ("255.255.255.255:7400") from
// its own socket. Replies to its pings are not read.
func NewAnnouncer(target string, p Packet, logger contracts.Logger) (*Announcer, error) {
	addr, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return nil, fmt.Errorf("resolve announce target %q: %w", target, err)
	}
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("open announce socket: %w", err)
	}
	return &Announcer{
		conn:   conn,
		owned:  true,
		target: addr,
		packet: p,
		clock:  contracts.SystemClock{},
		logger: logger,
	}, nil
}

// NewAnnouncer sends p to target through the listener's socket, so that
// replies to its pings arrive at the listener. The listener also starts
// answering other nodes' pings with p.
func (l *Listener) NewAnnouncer(target string, p Packet, pinger Pinger) (*Announcer, error) {
	addr, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return nil, fmt.Errorf("resolve announce target %q: %w", target, err)
	}
	l.ReplyAs(p)
	return &Announcer{
		conn:   l.conn,
		target: addr,
		packet: p,
		pinger: pinger,
		clock:  l.clock,
		logger: l.logger,
	}, nil
}

// Send writes one packet. With ping set, receivers that are not masters
// answer it.
func (a *Announcer) Send(ping bool) error {
	p := a.packet
	p.Announce = ping
	b, err := Encode(p)
	if err != nil {
		return err
	}
	if ping && a.pinger != nil {
		a.pinger.RecordPing(a.clock.Now())
	}
	_, err = a.conn.WriteTo(b, a.target)
	return err
}

// Close closes the socket unless it belongs to a Listener.
func (a *Announcer) Close() error {
	if !a.owned {
		return nil
	}
	return a.conn.Close()
}

// Run sends a ping every interval until ctx is done, then closes the
// socket.
func (a *Announcer) Run(ctx context.Context, every time.Duration) {
	defer a.Close()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if err := a.Send(true); err != nil && ctx.Err() == nil {
			a.logger.Warn("announce failed", a.logger.Field().Error("error", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

package contracts

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Role classifies a network participant.
type Role int

const (
	RoleUnknown Role = iota
	RoleMaster
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleClient:
		return "client"
	default:
		return "unknown"
	}
}

// ParseRole maps "master"/"client" to a Role; anything else is RoleUnknown.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "master":
		return RoleMaster
	case "client":
		return RoleClient
	default:
		return RoleUnknown
	}
}

// Features is the capability bitset a peer announces.
type Features uint32

const (
	FeatureAudio Features = 1 << iota
	FeatureVideo
	FeatureDMX
	FeatureMIDI
	FeatureTimecode
)

// Has reports whether every bit of f2 is set.
func (f Features) Has(f2 Features) bool { return f&f2 == f2 }

func (f Features) String() string {
	names := []string{"audio", "video", "dmx", "midi", "timecode"}
	var parts []string
	for i, n := range names {
		if f&(1<<i) != 0 {
			parts = append(parts, n)
		}
	}
	if rest := f &^ (1<<len(names) - 1); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Resolver performs best-effort name and hardware address lookups.
type Resolver interface {
	LookupHostname(ctx context.Context, ip string) (string, error)
	LookupMAC(ctx context.Context, ip string) (string, error)
}

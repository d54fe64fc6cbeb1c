package peer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/leandrodaf/stagewire/sdk/contracts"
)

// ErrNoARPEntry is returned when the ARP cache has no entry for an address.
var ErrNoARPEntry = errors.New("no ARP entry")

// Compile-time interface guard.
var _ contracts.Resolver = (*SystemResolver)(nil)

// SystemResolver resolves hostnames through reverse DNS and MAC addresses
// through the operating system's ARP cache.
type SystemResolver struct {
	logger contracts.Logger
	// readARP returns raw ARP output and the platform it was read on.
	readARP func(ctx context.Context) (string, string, error)
}

// NewSystemResolver creates a resolver for the running platform.
func NewSystemResolver(logger contracts.Logger) *SystemResolver {
	return &SystemResolver{logger: logger, readARP: readSystemARP}
}

// LookupHostname returns the first PTR name of ip without the trailing dot.
func (s *SystemResolver) LookupHostname(ctx context.Context, ip string) (string, error) {
	var resolver net.Resolver
	names, err := resolver.LookupAddr(ctx, ip)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no PTR record for %s", ip)
	}
	return strings.TrimSuffix(names[0], "."), nil
}

// LookupMAC returns the hardware address the ARP cache holds for ip.
func (s *SystemResolver) LookupMAC(ctx context.Context, ip string) (string, error) {
	out, platform, err := s.readARP(ctx)
	if err != nil {
		s.logger.Debug("reading ARP table failed",
			s.logger.Field().String("os", platform),
			s.logger.Field().Error("error", err))
		return "", err
	}
	if mac, ok := ParseARPOutput(out, platform)[ip]; ok {
		return mac, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoARPEntry, ip)
}

func readSystemARP(ctx context.Context) (string, string, error) {
	switch runtime.GOOS {
	case "linux":
		b, err := os.ReadFile("/proc/net/arp")
		return string(b), "linux", err
	case "windows", "darwin":
		out, err := exec.CommandContext(ctx, "arp", "-a").Output()
		return string(out), runtime.GOOS, err
	default:
		return "", runtime.GOOS, fmt.Errorf("ARP table reading not supported on %s", runtime.GOOS)
	}
}

// ParseARPOutput maps IP to upper-case colon-separated MAC for the ARP
// output format of platform ("linux", "windows" or "darwin"). Incomplete
// and broadcast entries are skipped.
func ParseARPOutput(output, platform string) map[string]string {
	table := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))

	switch platform {
	case "linux":
		// IP address  HW type  Flags  HW address  Mask  Device
		scanner.Scan()
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) < 4 {
				continue
			}
			addMAC(table, fields[0], fields[3])
		}
	case "windows":
		// 192.168.1.1   aa-bb-cc-dd-ee-ff   dynamic
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) < 3 || fields[0][0] < '0' || fields[0][0] > '9' {
				continue
			}
			addMAC(table, fields[0], strings.ReplaceAll(fields[1], "-", ":"))
		}
	case "darwin":
		// host (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0 ifscope [ethernet]
		for scanner.Scan() {
			line := scanner.Text()
			open, closing := strings.Index(line, "("), strings.Index(line, ")")
			if open < 0 || closing <= open {
				continue
			}
			rest := strings.Fields(line[closing+1:])
			if len(rest) < 2 || rest[0] != "at" {
				continue
			}
			addMAC(table, line[open+1:closing], rest[1])
		}
	}
	return table
}

func addMAC(table map[string]string, ip, mac string) {
	mac = strings.ToUpper(mac)
	switch mac {
	case "00:00:00:00:00:00", "FF:FF:FF:FF:FF:FF", "(INCOMPLETE)":
		return
	}
	table[ip] = mac
}

// NewInstanceID returns a fresh instance id for this process.
func NewInstanceID() string { return uuid.NewString() }

// ValidInstanceID reports whether id parses as a UUID.
func ValidInstanceID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

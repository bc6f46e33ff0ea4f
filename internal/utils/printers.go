package utils

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// --- Network discovery ---

// DefaultProbeTimeout bounds one TCP probe during a subnet scan.
const DefaultProbeTimeout = 300 * time.Millisecond

func DetectLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "", fmt.Errorf("no local IPv4 address found")
}

// SubnetOf returns the first three octets of an IPv4 address.
func SubnetOf(ip string) (string, error) {
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		return "", fmt.Errorf("%q is not an IPv4 address", ip)
	}
	parts := strings.Split(parsed.String(), ".")
	return strings.Join(parts[:3], "."), nil
}

// Probe reports whether something accepts TCP connections on host:port.
func Probe(ctx context.Context, host string, port int, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ScanOptions configures ScanSubnet. Zero values pick the defaults.
type ScanOptions struct {
	Port    int
	Workers int
	Timeout time.Duration
	// First and Last bound the host octet, 1 and 254 by default.
	First, Last int
}

// ScanSubnet probes every host of a /24 (given as "a.b.c") and returns the
// addresses with an open port, in ascending order.
func ScanSubnet(ctx context.Context, subnet string, opts ScanOptions) []string {
	if opts.Port == 0 {
		opts.Port = 9100
	}
	if opts.Workers <= 0 {
		opts.Workers = 50
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultProbeTimeout
	}
	if opts.First <= 0 {
		opts.First = 1
	}
	if opts.Last <= 0 || opts.Last > 254 {
		opts.Last = 254
	}

	hosts := make(chan int)
	found := make([]bool, opts.Last+1)
	var wg sync.WaitGroup

	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for h := range hosts {
				if Probe(ctx, fmt.Sprintf("%s.%d", subnet, h), opts.Port, opts.Timeout) {
					found[h] = true
				}
			}
		}()
	}

feed:
	for h := opts.First; h <= opts.Last; h++ {
		select {
		case hosts <- h:
		case <-ctx.Done():
			break feed
		}
	}
	close(hosts)
	wg.Wait()

	var out []string
	for h := opts.First; h <= opts.Last; h++ {
		if found[h] {
			out = append(out, fmt.Sprintf("%s.%d", subnet, h))
		}
	}
	return out
}

// Package dns resolves room server hostnames, falling back to public
// resolvers when the system resolver cannot answer.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var publicServers = []string{
	"1.1.1.1",
	"1.0.0.1",
	"8.8.8.8",
	"8.8.4.4",
	"9.9.9.9",
	"208.67.222.222",
}

const (
	localTimeout  = 1 * time.Second
	remoteTimeout = 2 * time.Second
)

var errNoAddress = errors.New("no addresses returned")

// DialContext resolves the host in addr with Lookup and dials the result.
// It has the signature expected by websocket.Dialer and http.Transport.
func DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ip, err := Lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed: %w", err)
	}

	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
}

// Lookup returns one address for host, preferring IPv4. IP literals are
// returned unchanged.
func Lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	local, cancel := context.WithTimeout(ctx, localTimeout)
	ip, err := lookupWith(local, &net.Resolver{}, host)
	cancel()
	if err == nil {
		return ip, nil
	}

	return racePublic(ctx, host)
}

// racePublic asks every public resolver at once and keeps the first answer.
func racePublic(ctx context.Context, host string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	type result struct {
		ip  string
		err error
	}
	results := make(chan result, len(publicServers))

	for _, server := range publicServers {
		go func(server string) {
			ip, err := lookupWith(ctx, resolverFor(server), host)
			results <- result{ip: ip, err: err}
		}(server)
	}

	var lastErr error
	for range publicServers {
		select {
		case res := <-results:
			if res.err == nil {
				return res.ip, nil
			}
			lastErr = res.err
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: %w", host, ctx.Err())
		}
	}
	return "", fmt.Errorf("resolve %s: all public resolvers failed: %w", host, lastErr)
}

func resolverFor(server string) *net.Resolver {
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}
}

func lookupWith(ctx context.Context, r *net.Resolver, host string) (string, error) {
	addrs, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", errNoAddress
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a, nil
		}
	}
	return addrs[0], nil
}

package dns

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupReturnsIPLiterals(t *testing.T) {
	for _, host := range []string{"127.0.0.1", "10.1.2.3", "::1", "2001:db8::1"} {
		ip, err := Lookup(context.Background(), host)
		require.NoError(t, err, host)
		assert.Equal(t, host, ip)
	}
}

func TestLookupLocalhost(t *testing.T) {
	ip, err := Lookup(context.Background(), "localhost")
	require.NoError(t, err)

	parsed := net.ParseIP(ip)
	require.NotNil(t, parsed, ip)
	assert.True(t, parsed.IsLoopback(), ip)
}

func TestLookupWithFailingResolver(t *testing.T) {
	r := &net.Resolver{
		PreferGo: true,
		Dial: func(context.Context, string, string) (net.Conn, error) {
			return nil, errors.New("unreachable")
		},
	}
	_, err := lookupWith(context.Background(), r, "cafe.invalid")
	assert.Error(t, err)
}

func TestRacePublicHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := racePublic(ctx, "cafe.invalid")
	assert.Error(t, err)
}

func TestDialContextLocalhost(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
		close(accepted)
	}()

	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	conn, err := DialContext(context.Background(), "tcp", net.JoinHostPort("127.0.0.1", port))
	require.NoError(t, err)
	conn.Close()
	<-accepted

	_, err = DialContext(context.Background(), "tcp", "no-port")
	assert.Error(t, err)
}

package netguard

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBlocked(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.20.0.5", true},
		{"192.168.1.1", true},
		{"169.254.169.254", true},
		{"::1", true},
		{"fd00::1", true},
		{"::", true},
		{"100.64.0.1", true},
		{"100.127.255.254", true},
		{"192.0.0.8", true},
		{"100.128.0.1", false},
		{"192.0.2.1", false},
		{"203.0.113.5", false},
		{"2001:db8::1", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBlocked(net.ParseIP(tt.ip)))
		})
	}
}

func TestGuard_IsTrustedHost(t *testing.T) {
	g := NewGuard("Origin.Internal", " 127.0.0.1 ", "")

	assert.True(t, g.IsTrustedHost("origin.internal:8080"))
	assert.True(t, g.IsTrustedHost("127.0.0.1:3000"))
	assert.True(t, g.IsTrustedHost("origin.internal"))
	assert.False(t, g.IsTrustedHost("10.0.0.1:80"))
}

func TestGuard_DialRejectsPrivateLiteral(t *testing.T) {
	g := NewGuard()
	_, err := g.DialContext(context.Background(), "tcp", "127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked private IP")
}

func TestGuard_DialTrustedLoopback(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		if c, err := ln.Accept(); err == nil {
			c.Close()
		}
	}()

	g := NewGuard("127.0.0.1")
	conn, err := g.DialContext(context.Background(), "tcp", ln.Addr().String())
	require.NoError(t, err)
	conn.Close()
}

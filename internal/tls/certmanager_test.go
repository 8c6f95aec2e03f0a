package tls

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowCert(t *testing.T) {
	cm := NewCertManager(Config{Domains: []string{"Shop.Example.com"}}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.NoError(t, cm.allowCert(context.Background(), "shop.example.com"))
	assert.NoError(t, cm.allowCert(context.Background(), "SHOP.example.com"))
	assert.ErrorIs(t, cm.allowCert(context.Background(), "evil.example.com"), ErrUnknownDomain)
}

func TestTLSConfig_AdvertisesHTTP2(t *testing.T) {
	cm := NewCertManager(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Contains(t, cm.TLSConfig().NextProtos, "h2")
}

package tls

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/caddyserver/certmagic"
)

// ErrUnknownDomain is returned by the on-demand decision for names the edge
// does not front.
var ErrUnknownDomain = errors.New("tls: unknown domain")

// Config selects the domains and ACME account used for certificates.
type Config struct {
	Domains    []string
	Email      string
	Production bool
}

// CertManager manages automatic TLS certificates via certmagic with on-demand provisioning.
type CertManager struct {
	domains []string
	logger  *slog.Logger
	cfg     *certmagic.Config
}

// NewCertManager creates a CertManager that provisions certificates on demand,
// but only for the configured domains.
func NewCertManager(c Config, logger *slog.Logger) *CertManager {
	certmagic.DefaultACME.Email = c.Email
	certmagic.DefaultACME.Agreed = true

	if !c.Production {
		certmagic.DefaultACME.CA = certmagic.LetsEncryptStagingCA
	}

	domains := make([]string, 0, len(c.Domains))
	for _, d := range c.Domains {
		domains = append(domains, strings.ToLower(d))
	}

	cfg := certmagic.NewDefault()
	cm := &CertManager{domains: domains, logger: logger, cfg: cfg}

	cfg.OnDemand = &certmagic.OnDemandConfig{
		DecisionFunc: cm.allowCert,
	}

	return cm
}

func (cm *CertManager) allowCert(_ context.Context, name string) error {
	if slices.Contains(cm.domains, strings.ToLower(name)) {
		return nil
	}
	cm.logger.Warn("refusing certificate", "domain", name)
	return fmt.Errorf("%w: %s", ErrUnknownDomain, name)
}

// Serve pre-manages the configured domains, then serves srv over TLS on the
// HTTPS port. HTTP-01 challenges are answered on the HTTP port by wrapping
// redirect.
func (cm *CertManager) Serve(ctx context.Context, srv *http.Server, redirect http.Handler) error {
	cm.logger.Info("starting TLS server", "domains", cm.domains)

	if len(cm.domains) > 0 {
		if err := cm.cfg.ManageSync(ctx, cm.domains); err != nil {
			return fmt.Errorf("manage known domains: %w", err)
		}
	}

	if issuer := cm.acmeIssuer(); issuer != nil && redirect != nil {
		go func() {
			addr := fmt.Sprintf(":%d", certmagic.HTTPPort)
			if err := http.ListenAndServe(addr, issuer.HTTPChallengeHandler(redirect)); err != nil {
				cm.logger.Error("http challenge listener failed", "err", err)
			}
		}()
	}

	ln, err := tls.Listen("tcp", net.JoinHostPort("", fmt.Sprint(certmagic.HTTPSPort)), cm.TLSConfig())
	if err != nil {
		return fmt.Errorf("tls listen: %w", err)
	}

	cm.logger.Info("serving HTTPS", "port", certmagic.HTTPSPort)
	return srv.Serve(ln)
}

func (cm *CertManager) acmeIssuer() *certmagic.ACMEIssuer {
	for _, iss := range cm.cfg.Issuers {
		if acme, ok := iss.(*certmagic.ACMEIssuer); ok {
			return acme
		}
	}
	return nil
}

// TLSConfig returns the certmagic TLS configuration for custom listeners.
func (cm *CertManager) TLSConfig() *tls.Config {
	tlsCfg := cm.cfg.TLSConfig()
	tlsCfg.NextProtos = append([]string{"h2", "http/1.1"}, tlsCfg.NextProtos...)
	return tlsCfg
}

// Package bridge wires the daemon together: session bus, media engine,
// pairing registry, realtime hub, pairing API and discovery responder.
package bridge

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mediamote/bridge/internal/config"
	"github.com/mediamote/bridge/internal/discovery"
	"github.com/mediamote/bridge/internal/httpapi"
	"github.com/mediamote/bridge/internal/mpris"
	"github.com/mediamote/bridge/internal/pairing"
	"github.com/mediamote/bridge/internal/ws"
	"github.com/rs/zerolog/log"
)

type Service struct {
	cfg config.Config
}

func NewService(cfg config.Config) *Service {
	return &Service{cfg: cfg}
}

// Run starts every subsystem and blocks until ctx is cancelled or a
// listener fails. Missing startup resources (bus, certificate) abort
// startup; nothing runs degraded.
func (s *Service) Run(ctx context.Context) error {
	if err := config.Validate(s.cfg); err != nil {
		return err
	}

	signKey, verifyKey, tlsCert, err := loadKeys(s.cfg.CertFile, s.cfg.KeyFile)
	if err != nil {
		return err
	}

	bus, err := mpris.ConnectSessionBus()
	if err != nil {
		return err
	}
	defer bus.Close()

	engine, err := mpris.NewEngine(bus)
	if err != nil {
		return err
	}
	defer engine.Close()
	log.Info().Msg("media engine loaded")

	registry, err := pairing.NewRegistry(pairing.RegistryConfig{
		SignKey:       signKey,
		VerifyKey:     verifyKey,
		Notifier:      pairing.DesktopNotifier{Bus: bus},
		CodeLength:    s.cfg.CodeLength,
		CodeTTL:       s.cfg.Timers.CodeTTL,
		SessionTTL:    s.cfg.Timers.SessionValidity,
		CredentialTTL: s.cfg.Timers.CredentialTTL,
	})
	if err != nil {
		return err
	}

	hub := ws.NewHub(engine, registry, ws.Config{
		PingInterval:        s.cfg.Timers.PingInterval,
		UnauthorizedTimeout: s.cfg.Timers.UnauthorizedTimeout,
	})

	responder, err := discovery.Listen(s.cfg.DiscoveryAddr, s.cfg.Name)
	if err != nil {
		return err
	}

	api := httpapi.New(registry)
	apiServer := &http.Server{
		Addr:      s.cfg.APIAddr,
		Handler:   api.Router(),
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{tlsCert}},
	}
	wsServer := &http.Server{
		Addr:    s.cfg.WSAddr,
		Handler: http.HandlerFunc(hub.HandleUpgrade),
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 4)

	go engine.Run(runCtx)
	go hub.Run(runCtx)

	go func() {
		errCh <- responder.Serve(runCtx)
	}()
	go func() {
		log.Info().Str("addr", s.cfg.APIAddr).Msg("pairing api listening")
		if err := apiServer.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("bridge: pairing api: %w", err)
			return
		}
		errCh <- nil
	}()
	go func() {
		log.Info().Str("addr", s.cfg.WSAddr).Msg("realtime channel listening")
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("bridge: realtime listener: %w", err)
			return
		}
		errCh <- nil
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("pairing api shutdown")
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("realtime listener shutdown")
	}

	log.Info().Msg("bridge stopped")
	return runErr
}

// loadKeys loads the TLS keypair and derives the RSA keys used to sign
// and verify pairing credentials from the same material.
func loadKeys(certFile, keyFile string) (*rsa.PrivateKey, *rsa.PublicKey, tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, nil, tls.Certificate{}, fmt.Errorf("bridge: load certificate: %w", err)
	}
	signKey, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, tls.Certificate{}, errors.New("bridge: certificate key is not RSA")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, nil, tls.Certificate{}, fmt.Errorf("bridge: parse certificate: %w", err)
	}
	verifyKey, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, nil, tls.Certificate{}, errors.New("bridge: certificate public key is not RSA")
	}
	return signKey, verifyKey, cert, nil
}

// Package mdns advertises the fsintent daemon over mDNS/Zeroconf so local
// tooling can discover it without configuration.
package mdns

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/holoplot/go-avahi"
)

const (
	// ServiceType is the mDNS service type for fsintent daemons.
	ServiceType = "_fsintent._tcp"

	// APIVersion is the API version advertised in TXT records.
	APIVersion = "v1"

	// ServerVersion is the daemon version advertised in TXT records.
	ServerVersion = "1.0.0"
)

// Service manages mDNS advertisement through the local Avahi daemon.
type Service struct {
	logger *slog.Logger

	mu     sync.Mutex
	server *avahi.Server
	group  *avahi.EntryGroup
}

// NewService creates an mDNS service. Nothing talks to D-Bus until Start.
func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// Start begins advertising on the given port. It should be called after the
// HTTP listener is up. Failures are expected in some environments (no Avahi
// daemon, no D-Bus, containers without multicast) and the caller should
// treat them as non-fatal.
func (s *Service) Start(name string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Restart cleanly if already advertising.
	s.stopLocked()

	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("connect system bus: %w", err)
	}

	server, err := avahi.ServerNew(conn)
	if err != nil {
		return fmt.Errorf("connect avahi: %w", err)
	}

	group, err := server.EntryGroupNew()
	if err != nil {
		server.Close()
		return fmt.Errorf("create entry group: %w", err)
	}

	if name == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "fsintent"
		}
		name = host
	}

	txt := [][]byte{
		[]byte("version=" + ServerVersion),
		[]byte("api=" + APIVersion),
	}

	err = group.AddService(
		avahi.InterfaceUnspec,
		avahi.ProtoUnspec,
		0,
		name,
		ServiceType,
		"local",
		"",
		uint16(port),
		txt,
	)
	if err != nil {
		server.Close()
		return fmt.Errorf("add service: %w", err)
	}

	if err := group.Commit(); err != nil {
		server.Close()
		return fmt.Errorf("commit entry group: %w", err)
	}

	s.server = server
	s.group = group

	s.logger.Info("mdns advertisement started",
		"name", name,
		"type", ServiceType,
		"port", port,
	)
	return nil
}

// Stop removes the advertisement. Safe to call when not advertising.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Service) stopLocked() {
	if s.server == nil {
		return
	}
	s.server.Close()
	s.server = nil
	s.group = nil
	s.logger.Info("mdns advertisement stopped")
}

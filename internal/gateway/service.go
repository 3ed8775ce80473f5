package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/quizbattle/quizbattle/internal/answer"
	"github.com/quizbattle/quizbattle/internal/countdown"
	"github.com/quizbattle/quizbattle/internal/match"
	"github.com/quizbattle/quizbattle/internal/models"
	"github.com/quizbattle/quizbattle/internal/registry"
	"github.com/quizbattle/quizbattle/internal/store"
)

// Service bundles the gateway's moving parts: the connection manager, the
// sync adapter and the HTTP handler.
type Service struct {
	manager  *ConnectionManager
	adapter  *Adapter
	provider *StateProvider
	handler  *Handler
}

// ServiceConfig configures the gateway service.
type ServiceConfig struct {
	Store      *store.GameStore
	Controller *match.Controller
	Registry   *registry.Registry
	Collector  *answer.Collector

	// Clock drives countdown ticks. Defaults to the real clock.
	Clock clockwork.Clock

	Bank          []models.Question
	HostKey       string
	PublicBaseURL string

	// Connection overrides DefaultConnectionConfig when non-zero.
	Connection *ConnectionConfig
}

// NewService wires the gateway over the given collaborators.
func NewService(cfg ServiceConfig) *Service {
	connCfg := DefaultConnectionConfig()
	if cfg.Connection != nil {
		connCfg = *cfg.Connection
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	cm := NewConnectionManager(connCfg)
	synchronizer := countdown.New(clock, countdown.DefaultConfig())
	adapter := NewAdapter(cfg.Store, cm, synchronizer, cfg.Controller.QuestionDuration(), cfg.Controller.StartingCountdown())
	provider := NewStateProvider(cfg.Store, cfg.Controller.QuestionDuration(), cfg.Controller.StartingCountdown())
	handler := NewHandler(HandlerConfig{
		Controller:    cfg.Controller,
		Registry:      cfg.Registry,
		Collector:     cfg.Collector,
		Provider:      provider,
		Adapter:       adapter,
		Manager:       cm,
		Store:         cfg.Store,
		Bank:          cfg.Bank,
		HostKey:       cfg.HostKey,
		PublicBaseURL: cfg.PublicBaseURL,
	})

	return &Service{
		manager:  cm,
		adapter:  adapter,
		provider: provider,
		handler:  handler,
	}
}

// Start pins ctx as the lifetime for match pumps and launches the broadcast
// loop. Both run until ctx is cancelled; pumps deliberately do not inherit
// the context of the request that first touched a match.
func (s *Service) Start(ctx context.Context) {
	s.adapter.Start(ctx)
	go s.manager.Start(ctx)
}

// RegisterRoutes registers the gateway's routes on the mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.handler.RegisterRoutes(mux)
}

// ConnectionStats reports current connection counts.
func (s *Service) ConnectionStats() (total int, perMatch map[string]int) {
	return s.manager.ConnectionStats()
}

// Shutdown closes all connections.
func (s *Service) Shutdown() {
	s.manager.CloseAll()
}

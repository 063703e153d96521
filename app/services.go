// Package app is a small users API built from typed endpoints. It shows the
// pipeline end to end: contracts, services, authorizers, and handlers.
package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/artpar/routekit/core/events"
	"github.com/artpar/routekit/core/service"
	"github.com/artpar/routekit/ports"
)

// Service names.
const (
	ServiceLogger = "logger"
	ServiceStore  = "store"
	ServiceHasher = "hasher"
	ServiceTokens = "tokens"
	ServiceIDs    = "ids"
	ServiceClock  = "clock"
	ServiceEvents = "events"
)

// Deps are the adapters the services produce.
type Deps struct {
	Logger zerolog.Logger
	// OpenStore is called once, on the first request that needs the store.
	OpenStore func(ctx context.Context) (ports.UserStore, error)
	Hasher    ports.Hasher
	Tokens    ports.TokenIssuer
	IDs       ports.IDGenerator
	Clock     ports.Clock
	// Events receives user.created and user.deleted. Defaults to a bus
	// with no subscribers.
	Events events.Publisher
}

// Services holds the typed service definitions endpoints declare.
type Services struct {
	Logger *service.Def[zerolog.Logger]
	Store  *service.Def[ports.UserStore]
	Hasher *service.Def[ports.Hasher]
	Tokens *service.Def[ports.TokenIssuer]
	IDs    *service.Def[ports.IDGenerator]
	Clock  *service.Def[ports.Clock]
	Events *service.Def[events.Publisher]

	store service.Provider
}

// NewServices defines every service over deps.
func NewServices(deps Deps) *Services {
	if deps.Events == nil {
		deps.Events = events.NewBus(deps.Logger)
	}

	logger := service.Define(ServiceLogger, func(context.Context, *service.Registry) (zerolog.Logger, error) {
		return deps.Logger, nil
	})

	// The store producer logs through the logger service, so endpoints
	// declare logger ahead of store.
	store := service.Define(ServiceStore, func(ctx context.Context, r *service.Registry) (ports.UserStore, error) {
		log, err := logger.Resolve(ctx, r)
		if err != nil {
			return nil, err
		}
		st, err := deps.OpenStore(ctx)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("user store opened")
		return st, nil
	})

	return &Services{
		Logger: logger,
		Store:  store,
		Hasher: service.Value(ServiceHasher, deps.Hasher),
		Tokens: service.Value(ServiceTokens, deps.Tokens),
		IDs:    service.Value(ServiceIDs, deps.IDs),
		Clock:  service.Value(ServiceClock, deps.Clock),
		Events: service.Value(ServiceEvents, deps.Events),
		store:  service.Singleton(store),
	}
}

// Providers lists every provider, the store wrapped as a singleton.
func (s *Services) Providers() []service.Provider {
	return []service.Provider{s.Logger, s.store, s.Hasher, s.Tokens, s.IDs, s.Clock, s.Events}
}

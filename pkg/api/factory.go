// Package api provides factory implementations for dependency injection
package api

import (
	"context"

	"github.com/ssargent/primefusion/pkg/sessionkey"
)

// DefaultServerFactory is the default implementation of ServerFactory
type DefaultServerFactory struct{}

// NewServerFactory creates a new server factory
func NewServerFactory() ServerFactory {
	return &DefaultServerFactory{}
}

// CreateServerStarter creates a server starter
func (f *DefaultServerFactory) CreateServerStarter() ServerStarter {
	return &DefaultServerStarter{}
}

// DefaultServerStarter is the default implementation of ServerStarter
type DefaultServerStarter struct{}

// StartServer starts the API server with the given configuration
func (s *DefaultServerStarter) StartServer(ctx context.Context, store BeaconStore, keys sessionkey.Source, config ServerConfig) error {
	return StartServer(ctx, store, keys, config)
}

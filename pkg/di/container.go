// Package di provides dependency injection container
package di

import (
	"github.com/ssargent/primefusion/pkg/api"   //nolint:depguard
	"github.com/ssargent/primefusion/pkg/store" //nolint:depguard
)

// Container holds all the dependencies for the application
type Container struct {
	storeOpener   store.Opener
	serverFactory api.ServerFactory
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		storeOpener:   store.NewOpener(),
		serverFactory: api.NewServerFactory(),
	}
}

// GetStoreOpener returns the journal opener
func (c *Container) GetStoreOpener() store.Opener {
	return c.storeOpener
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetStoreOpener allows overriding the journal opener (for testing)
func (c *Container) SetStoreOpener(opener store.Opener) {
	c.storeOpener = opener
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}

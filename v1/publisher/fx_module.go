package publisher

import (
	"context"

	"github.com/Aleph-Alpha/pidmq/v1/observability"
	"go.uber.org/fx"
)

// FXModule defines the Fx module for the publisher package.
// This module integrates the publisher into an Fx-based application by
// providing the publisher factory and registering its lifecycle hooks.
//
// The module:
//  1. Provides NewFXPublisher to the dependency injection container,
//     making the publisher available to other components
//  2. Invokes RegisterPublisherLifecycle to start the worker on application
//     start and drain it gracefully on application shutdown
//
// Usage:
//
//	app := fx.New(
//	    publisher.FXModule,
//	    // other modules...
//	)
//
// Dependencies required by this module:
// - A publisher.Config instance must be available in the dependency injection container
// - A publisher.Logger and an observability.Observer are picked up when present
var FXModule = fx.Module("publisher",
	fx.Provide(
		NewFXPublisher,
	),
	fx.Invoke(RegisterPublisherLifecycle),
)

// PublisherParams defines the dependencies injected by Fx. Logger and
// Observer are optional; without them the publisher runs silently.
type PublisherParams struct {
	fx.In

	Config   Config
	Logger   Logger                 `optional:"true"`
	Observer observability.Observer `optional:"true"`
}

// NewFXPublisher is the Fx-aware factory wrapping NewPublisher.
func NewFXPublisher(params PublisherParams) (*Publisher, error) {
	pub, err := NewPublisher(params.Config)
	if err != nil {
		return nil, err
	}
	if params.Logger != nil {
		pub.WithLogger(params.Logger)
	}
	if params.Observer != nil {
		pub.WithObserver(params.Observer)
	}
	return pub, nil
}

// RegisterPublisherLifecycle ties the publisher to the application
// lifecycle: the worker starts with the application and is drained
// gracefully when it stops, honoring the shutdown context deadline.
//
// Note: This function is automatically invoked by the FXModule and does not
// need to be called directly in application code.
func RegisterPublisherLifecycle(lc fx.Lifecycle, pub *Publisher) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return pub.Start()
		},
		OnStop: func(ctx context.Context) error {
			return pub.GracefulShutdown(ctx)
		},
	})
}

package container

import (
	"github.com/ion-foundation/capability-container/capabilities/cache"
	"github.com/ion-foundation/capability-container/capabilities/datastore"
	"github.com/ion-foundation/capability-container/capabilities/exchange"
	"github.com/ion-foundation/capability-container/capabilities/procmgr"
	"github.com/ion-foundation/capability-container/capabilities/resregistry"
	"github.com/ion-foundation/capability-container/capabilities/scheduler"
)

// RegisterBuiltins wires the constructors for the capabilities that ship with
// the container. Deployments with custom capabilities register additional
// factories on Factories() before Start.
func (c *Container) RegisterBuiltins() error {
	builtins := map[string]func() error{
		procmgr.ClassRef: func() error {
			return c.factories.Register(procmgr.ClassRef, procmgr.Constructor(c.log))
		},
		exchange.ClassRef: func() error {
			return c.factories.Register(exchange.ClassRef, exchange.Constructor(c.settings.Exchange, c.log))
		},
		datastore.ClassRef: func() error {
			return c.factories.Register(datastore.ClassRef, datastore.Constructor(c.settings.Datastore, c.log))
		},
		cache.ClassRef: func() error {
			return c.factories.Register(cache.ClassRef, cache.Constructor(c.settings.Cache, c.log))
		},
		resregistry.ClassRef: func() error {
			return c.factories.Register(resregistry.ClassRef, resregistry.Constructor(c.log))
		},
		scheduler.ClassRef: func() error {
			return c.factories.Register(scheduler.ClassRef, scheduler.Constructor(c.log))
		},
	}

	for _, register := range builtins {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

// Package hotfix loads the business logic module and reloads it without restarting the server.
//
// Reloading builds a new module from the loader, lets it register its components again
// (replacing the factories), swaps the dispatcher's route table and clears the components
// of all actors so that they are recreated by the new factories.
package hotfix

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/actor"
	"github.com/xiaonanln/gwactor/engine/dispatcher"
	"github.com/xiaonanln/gwactor/engine/gwlog"
)

// Module is a business logic module
type Module interface {
	// OnLoad registers the components of the module; reload is true when replacing a running module
	OnLoad(ctx context.Context, reload bool) error
	// Routes returns the message routes of the module
	Routes() []dispatcher.Route
	// Stop is called on the replaced module, and on the current module at shutdown
	Stop(ctx context.Context)
}

// Loader creates a new instance of the module
type Loader func() Module

// Manager holds the current module
type Manager struct {
	lock       sync.Mutex
	loader     Loader
	module     Module
	dispatcher *dispatcher.Dispatcher
	actors     *actor.Manager
	reloadTime time.Time
}

// NewManager creates a hotfix manager installing routes in d and clearing agents of actors on reload
func NewManager(d *dispatcher.Dispatcher, actors *actor.Manager) *Manager {
	return &Manager{
		dispatcher: d,
		actors:     actors,
	}
}

// Load loads the first module
func (m *Manager) Load(ctx context.Context, loader Loader) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.module != nil {
		return errors.New("hotfix: module already loaded")
	}
	module, table, err := m.build(ctx, loader, false)
	if err != nil {
		return err
	}
	m.loader = loader
	m.install(module, table)
	gwlog.Infof("hotfix: module loaded, %d routes", len(table))
	return nil
}

// Reload replaces the current module with a new instance from the loader.
// The running module stays in place if the new one fails to load.
func (m *Manager) Reload(ctx context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.module == nil {
		return errors.New("hotfix: no module loaded")
	}

	module, table, err := m.build(ctx, m.loader, true)
	if err != nil {
		gwlog.Errorf("hotfix: reload failed: %v", err)
		return err
	}
	old := m.module
	m.install(module, table)
	old.Stop(ctx)

	if err := m.actors.ClearAgents(ctx); err != nil {
		gwlog.Errorf("hotfix: clear agents: %v", err)
	}
	gwlog.Infof("hotfix: module reloaded, %d routes", len(table))
	return nil
}

func (m *Manager) build(ctx context.Context, loader Loader, reload bool) (Module, dispatcher.Table, error) {
	module := loader()
	if err := module.OnLoad(ctx, reload); err != nil {
		return nil, nil, errors.WithMessage(err, "hotfix: load module")
	}
	table, err := dispatcher.NewTable(module.Routes())
	if err != nil {
		return nil, nil, errors.WithMessage(err, "hotfix: build routes")
	}
	return module, table, nil
}

func (m *Manager) install(module Module, table dispatcher.Table) {
	m.module = module
	m.dispatcher.SetTable(table)
	m.reloadTime = time.Now()
}

// Stop stops the current module
func (m *Manager) Stop(ctx context.Context) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.module != nil {
		m.module.Stop(ctx)
	}
}

// Routes returns the route table in use
func (m *Manager) Routes() dispatcher.Table {
	return m.dispatcher.Table()
}

// ReloadTime returns when the current module was loaded
func (m *Manager) ReloadTime() time.Time {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.reloadTime
}

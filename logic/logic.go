// Package logic is the business logic module of the game server: login, roles, bags and the server component.
package logic

import (
	"context"

	"github.com/xiaonanln/gwactor/engine/dispatcher"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/hotfix"
	engineserver "github.com/xiaonanln/gwactor/engine/server"
	"github.com/xiaonanln/gwactor/logic/bag"
	"github.com/xiaonanln/gwactor/logic/login"
	"github.com/xiaonanln/gwactor/logic/role"
	"github.com/xiaonanln/gwactor/logic/server"
)

// Module implements hotfix.Module
type Module struct {
	env *engineserver.Env
}

// New creates the module, used as engineserver.ModuleFactory
func New(env *engineserver.Env) hotfix.Module {
	return &Module{env: env}
}

// OnLoad registers all components
func (m *Module) OnLoad(ctx context.Context, reload bool) error {
	server.Register()
	login.Register(m.env.ServerID, m.env.KVDB, m.env.Sessions)
	role.Register(m.env.ServerID, m.env.Sessions)
	bag.Register()
	gwlog.Infof("logic module loaded, reload=%v", reload)
	return nil
}

// Routes returns the routes of all components
func (m *Module) Routes() []dispatcher.Route {
	var routes []dispatcher.Route
	routes = append(routes, login.Routes()...)
	routes = append(routes, bag.Routes()...)
	routes = append(routes, server.Routes()...)
	return routes
}

// Stop does nothing, components save their states when deactivated
func (m *Module) Stop(ctx context.Context) {
	gwlog.Infof("logic module stopped")
}

// Package server wires the engine together into one game server process.
package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
	"github.com/xiaonanln/gwactor/engine/actor"
	"github.com/xiaonanln/gwactor/engine/admin"
	"github.com/xiaonanln/gwactor/engine/binutil"
	"github.com/xiaonanln/gwactor/engine/config"
	"github.com/xiaonanln/gwactor/engine/consts"
	"github.com/xiaonanln/gwactor/engine/crontab"
	"github.com/xiaonanln/gwactor/engine/dispatcher"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/gwutils"
	"github.com/xiaonanln/gwactor/engine/hotfix"
	"github.com/xiaonanln/gwactor/engine/idgen"
	"github.com/xiaonanln/gwactor/engine/kvdb"
	"github.com/xiaonanln/gwactor/engine/netutil"
	"github.com/xiaonanln/gwactor/engine/session"
	"github.com/xiaonanln/gwactor/engine/storage"
)

// Env is what the business logic module is built with
type Env struct {
	ServerID int
	Actors   *actor.Manager
	Sessions *session.Manager
	KVDB     *kvdb.KVDB
}

// ModuleFactory creates the business logic module. It is called again on every reload.
type ModuleFactory func(env *Env) hotfix.Module

// Server is one game server process
type Server struct {
	cfg        *config.GWActorConfig
	env        *Env
	store      storage.Store
	dispatcher *dispatcher.Dispatcher
	hotfix     *hotfix.Manager
	admin      *admin.Server
	cron       *crontab.Crontab
	running    xnsyncutil.AtomicBool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New opens storage and kvdb and creates the engine managers. The module is loaded by Start.
func New(cfg *config.GWActorConfig) (*Server, error) {
	store, err := storage.Open(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	kv, err := kvdb.Open(&cfg.KVDB)
	if err != nil {
		store.Close()
		return nil, err
	}
	return newServer(cfg, store, kv), nil
}

func newServer(cfg *config.GWActorConfig, store storage.Store, kv *kvdb.KVDB) *Server {
	sc := &cfg.Server
	actors := actor.NewManager(store)
	actors.SetCallTimeout(sc.CallTimeout)
	actors.SetRecycleIdle(sc.RecycleIdle)

	sessions := session.NewManager()
	actors.SetSessionChecker(sessions.Has)
	sessions.SetOnRemoved(func(actorID idgen.ActorID) {
		actors.Dispatch(actorID, actor.Event{ID: actor.EventSessionRemoved})
	})

	s := &Server{
		cfg:   cfg,
		store: store,
		env: &Env{
			ServerID: sc.ServerID,
			Actors:   actors,
			Sessions: sessions,
			KVDB:     kv,
		},
		dispatcher: dispatcher.New(sc.ServerID, actors, sessions),
		admin:      admin.NewServer(),
		cron:       crontab.New(),
	}
	s.hotfix = hotfix.NewManager(s.dispatcher, actors)
	s.admin.SetRunningChecker(s.running.Load)
	s.admin.RegisterBuiltins(&admin.Env{
		Sessions: sessions,
		Actors:   actors,
		Hotfix:   s.hotfix,
	})
	return s
}

// Env returns the engine environment of the server
func (s *Server) Env() *Env {
	return s.env
}

// Dispatcher returns the message dispatcher
func (s *Server) Dispatcher() *dispatcher.Dispatcher {
	return s.dispatcher
}

// Hotfix returns the hotfix manager
func (s *Server) Hotfix() *hotfix.Manager {
	return s.hotfix
}

// Admin returns the admin command server
func (s *Server) Admin() *admin.Server {
	return s.admin
}

// Start loads the module, activates global actors and starts the background loops and listeners
func (s *Server) Start(ctx context.Context, factory ModuleFactory) error {
	if err := s.hotfix.Load(ctx, func() hotfix.Module { return factory(s.env) }); err != nil {
		return err
	}
	if err := s.activateGlobals(ctx); err != nil {
		return err
	}

	ctx, s.cancel = context.WithCancel(ctx)
	sc := &s.cfg.Server
	s.goRun(func() { actor.RunTimerTicks(ctx, sc.TickInterval) })
	s.goRun(func() { s.saveLoop(ctx) })
	s.goRun(func() { s.cron.Run(ctx) })
	if _, err := s.cron.Register(0, consts.CROSS_DAY_HOUR, -1, -1, -1, func() { s.crossDay(ctx) }); err != nil {
		return err
	}

	if sc.TCPAddr != "" {
		s.goRun(func() { netutil.ServeTCPForever(ctx, sc.TCPAddr, s) })
	}
	if sc.KCPAddr != "" {
		s.goRun(func() { netutil.ServeKCPForever(ctx, sc.KCPAddr, s) })
	}
	handlers := map[string]http.Handler{
		admin.APIPath: s.admin,
	}
	if sc.WSAddr != "" {
		handlers["/ws"] = netutil.WebSocketHandler(s)
	}
	if sc.HTTPAddr != "" {
		binutil.SetupHTTPServer(ctx, sc.HTTPAddr, handlers)
	}

	s.running.Store(true)
	gwlog.Infof("server %d started", sc.ServerID)
	return nil
}

func (s *Server) goRun(f func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		gwutils.RunPanicless(f)
	}()
}

// activateGlobals creates the global actors of every entity type having components
func (s *Server) activateGlobals(ctx context.Context) error {
	for t := idgen.Separator + 1; t < idgen.MaxEntityType; t++ {
		if len(actor.CompsOf(t)) == 0 {
			continue
		}
		id, err := idgen.NewGlobalID(t, s.env.ServerID)
		if err != nil {
			return err
		}
		a, err := s.env.Actors.GetOrCreate(id)
		if err != nil {
			return err
		}
		if err := actor.ActivateAll(ctx, a); err != nil {
			return errors.WithMessagef(err, "activate %s", a)
		}
	}
	return nil
}

func (s *Server) saveLoop(ctx context.Context) {
	sc := &s.cfg.Server
	saveTicker := time.NewTicker(sc.SaveInterval)
	defer saveTicker.Stop()
	idleTicker := time.NewTicker(sc.IdleCheckInterval)
	defer idleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-saveTicker.C:
			if err := s.env.Actors.TimerSave(ctx); err != nil {
				gwlog.Errorf("timer save: %v", err)
			}
		case <-idleTicker.C:
			n, err := s.env.Actors.CheckIdle(ctx)
			if err != nil {
				gwlog.Errorf("check idle: %v", err)
			} else if n > 0 {
				gwlog.Infof("check idle: %d actors recycled, %d remain", n, s.env.Actors.Count())
			}
		}
	}
}

func (s *Server) crossDay(ctx context.Context) {
	driver, err := idgen.NewGlobalID(idgen.Server, s.env.ServerID)
	if err != nil {
		gwlog.Errorf("cross day: %v", err)
		return
	}
	day := OpenServerDay(s.cfg.Server.OpenServerDate, time.Now())
	if err := s.env.Actors.CrossDay(ctx, day, driver); err != nil {
		gwlog.Errorf("cross day: %v", err)
	}
}

// OpenServerDay returns the day number of now, the open server date being day 1.
// A zero open date counts as today.
func OpenServerDay(openDate time.Time, now time.Time) int {
	if openDate.IsZero() {
		return 1
	}
	y, m, d := openDate.Date()
	open := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	y, m, d = now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return int(today.Sub(open).Hours()/24+0.5) + 1
}

// Stop stops accepting connections, removes all sessions, saves and removes all actors, then closes storage
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.Load() {
		return errors.New("server is not running")
	}
	s.running.Store(false)
	gwlog.Infof("server %d stopping ...", s.env.ServerID)

	ctx, cancel := context.WithTimeout(ctx, consts.SHUTDOWN_WAIT)
	defer cancel()

	s.cancel()
	s.env.Sessions.RemoveAll()
	if err := s.env.Actors.AllFinish(ctx); err != nil {
		gwlog.Errorf("stop: wait actors: %v", err)
	}
	if err := s.env.Actors.SaveAll(ctx); err != nil {
		gwlog.Errorf("stop: save all: %v", err)
	}
	if err := s.env.Actors.RemoveAll(ctx); err != nil {
		gwlog.Errorf("stop: remove actors: %v", err)
	}
	s.hotfix.Stop(ctx)
	s.wg.Wait()

	s.env.KVDB.Close()
	if err := s.store.Close(); err != nil {
		gwlog.Errorf("stop: close storage: %v", err)
	}
	gwlog.Infof("server %d stopped", s.env.ServerID)
	return nil
}

// ServeConnection serves one client connection until it is closed
func (s *Server) ServeConnection(conn net.Conn) {
	ch := netutil.NewNetChannel(conn, s.cfg.Server.CompressConnection)
	if err := ch.ReadLoop(s); err != nil {
		gwlog.Warnf("%s: read loop: %v", ch, err)
	}
}

// HandleFrame dispatches frames of a channel in reading order
func (s *Server) HandleFrame(ch *netutil.NetChannel, msgType int32, payload []byte) {
	// failures are logged by the dispatcher and never close the channel
	_ = s.dispatcher.Dispatch(context.Background(), ch, msgType, payload)
}

// OnChannelClosed removes the session bound to the channel
func (s *Server) OnChannelClosed(ch *netutil.NetChannel) {
	s.env.Sessions.Remove(ch.ID())
}

package admin

import (
	"context"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/process"
	"github.com/xiaonanln/gwactor/engine/actor"
	"github.com/xiaonanln/gwactor/engine/idgen"
	"github.com/xiaonanln/gwactor/engine/opmon"
	"github.com/xiaonanln/gwactor/engine/session"
)

// Reloader reloads the business logic
type Reloader interface {
	Reload(ctx context.Context) error
	ReloadTime() time.Time
}

// Env is what the builtin commands operate on
type Env struct {
	Sessions *session.Manager
	Actors   *actor.Manager
	Hotfix   Reloader
}

// OnlineInfo describes one online session
type OnlineInfo struct {
	ActorID   int64     `json:"actor_id"`
	ChannelID int64     `json:"channel_id"`
	Sign      string    `json:"sign"`
	LoginTime time.Time `json:"login_time"`
}

// Status describes the running process
type Status struct {
	Pid        int            `json:"pid"`
	CPUPercent float64        `json:"cpu_percent"`
	RSS        uint64         `json:"rss"`
	Goroutines int            `json:"goroutines"`
	Actors     int            `json:"actors"`
	Sessions   int            `json:"sessions"`
	ReloadTime time.Time      `json:"reload_time"`
	Operations []opmon.OpStat `json:"operations"`
}

// RegisterBuiltins registers online_count, online_list, kick, reload, save_all and status
func (s *Server) RegisterBuiltins(env *Env) {
	s.Register("online_count", func(ctx context.Context, params url.Values) (interface{}, error) {
		return env.Sessions.Count(), nil
	})
	s.Register("online_list", func(ctx context.Context, params url.Values) (interface{}, error) {
		pageSize, err := intParam(params, "page_size", 100)
		if err != nil {
			return nil, err
		}
		pageIndex, err := intParam(params, "page_index", 0)
		if err != nil {
			return nil, err
		}
		page := env.Sessions.GetPage(pageSize, pageIndex)
		list := make([]OnlineInfo, 0, len(page))
		for _, s := range page {
			list = append(list, OnlineInfo{
				ActorID:   int64(s.ActorID),
				ChannelID: s.Channel.ID(),
				Sign:      s.Sign,
				LoginTime: s.LoginTime,
			})
		}
		return list, nil
	})
	s.Register("kick", func(ctx context.Context, params url.Values) (interface{}, error) {
		id, err := intParam(params, "actor_id", 0)
		if err != nil {
			return nil, err
		}
		if id <= 0 {
			return nil, errors.Wrap(ErrParam, "actor_id is required")
		}
		return env.Sessions.KickByActorID(idgen.ActorID(id)), nil
	})
	s.Register("reload", func(ctx context.Context, params url.Values) (interface{}, error) {
		if err := env.Hotfix.Reload(ctx); err != nil {
			return nil, err
		}
		return env.Hotfix.ReloadTime(), nil
	})
	s.Register("save_all", func(ctx context.Context, params url.Values) (interface{}, error) {
		if err := env.Actors.SaveAll(ctx); err != nil {
			return nil, err
		}
		return env.Actors.Count(), nil
	})
	s.Register("status", func(ctx context.Context, params url.Values) (interface{}, error) {
		st := Status{
			Pid:        os.Getpid(),
			Goroutines: runtime.NumGoroutine(),
			Actors:     env.Actors.Count(),
			Sessions:   env.Sessions.Count(),
			ReloadTime: env.Hotfix.ReloadTime(),
			Operations: opmon.Snapshot(),
		}
		p, err := process.NewProcess(int32(st.Pid))
		if err != nil {
			return nil, errors.Wrap(err, "find process")
		}
		if st.CPUPercent, err = p.CPUPercentWithContext(ctx); err != nil {
			return nil, errors.Wrap(err, "cpu percent")
		}
		mem, err := p.MemoryInfoWithContext(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "memory info")
		}
		st.RSS = mem.RSS
		return st, nil
	})
}

func intParam(params url.Values, key string, def int) (int, error) {
	v := params.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrParam, "%s: %v", key, err)
	}
	return int(n), nil
}

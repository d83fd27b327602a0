// Package admin serves the administrative HTTP commands of the server.
//
// Every command is reached at APIPath + name, e.g. /game/api/online_count, with its
// parameters in the query string or a POST form. Results are JSON objects {code, msg, data}.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/consts"
	"github.com/xiaonanln/gwactor/engine/gwlog"
)

// APIPath is the path prefix of admin commands
const APIPath = "/game/api/"

// Result codes
const (
	CodeSuccess      = 0
	CodeUndefined    = 1
	CodeParamError   = 2
	CodeActionFailed = 3
	CodeNotRunning   = 4
)

// Result is the JSON body of every admin response
type Result struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// Command executes one admin command
type Command func(ctx context.Context, params url.Values) (interface{}, error)

// ErrParam is the cause of errors caused by bad command parameters
var ErrParam = errors.New("invalid parameter")

// Server dispatches admin HTTP requests to registered commands
type Server struct {
	lock     sync.RWMutex
	commands map[string]Command
	running  func() bool
	timeout  time.Duration
}

// NewServer creates an admin server without commands
func NewServer() *Server {
	return &Server{
		commands: map[string]Command{},
		timeout:  consts.ADMIN_COMMAND_TIMEOUT,
	}
}

// Register registers the command of name, replacing the previous one
func (s *Server) Register(name string, cmd Command) {
	s.lock.Lock()
	s.commands[name] = cmd
	s.lock.Unlock()
}

// SetRunningChecker makes commands fail while running returns false, e.g. during startup or shutdown
func (s *Server) SetRunningChecker(running func() bool) {
	s.running = running
}

func (s *Server) command(name string) Command {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.commands[name]
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, APIPath), "/")
	if err := r.ParseForm(); err != nil {
		writeResult(w, Result{Code: CodeParamError, Msg: err.Error()})
		return
	}
	gwlog.Infof("admin: %s from %s: %v", name, r.RemoteAddr, r.Form)

	cmd := s.command(name)
	if cmd == nil {
		gwlog.Warnf("admin: command %q not found", name)
		writeResult(w, Result{Code: CodeUndefined, Msg: "undefined command: " + name})
		return
	}
	if s.running != nil && !s.running() {
		writeResult(w, Result{Code: CodeNotRunning, Msg: "server is not running"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	data, err := cmd(ctx, r.Form)
	if err != nil {
		code := CodeActionFailed
		if errors.Cause(err) == ErrParam {
			code = CodeParamError
		}
		gwlog.Errorf("admin: %s failed: %v", name, err)
		writeResult(w, Result{Code: code, Msg: err.Error()})
		return
	}
	writeResult(w, Result{Code: CodeSuccess, Msg: "ok", Data: data})
}

func writeResult(w http.ResponseWriter, res Result) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		gwlog.Errorf("admin: write result failed: %v", err)
	}
}

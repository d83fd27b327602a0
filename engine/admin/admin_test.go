package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/actor"
	"github.com/xiaonanln/gwactor/engine/idgen"
	"github.com/xiaonanln/gwactor/engine/session"
	storagememory "github.com/xiaonanln/gwactor/engine/storage/backend/memory"
)

type fakeChannel struct {
	id     int64
	closed bool
}

func (fc *fakeChannel) ID() int64                                      { return fc.id }
func (fc *fakeChannel) WriteFrame(msgType int32, payload []byte) error { return nil }
func (fc *fakeChannel) Close() error                                   { fc.closed = true; return nil }
func (fc *fakeChannel) IsClosed() bool                                 { return fc.closed }
func (fc *fakeChannel) SetSessionID(id int64)                          {}
func (fc *fakeChannel) RemoveSessionID()                               {}

type fakeReloader struct {
	reloads int
	fail    bool
	at      time.Time
}

func (fr *fakeReloader) Reload(ctx context.Context) error {
	if fr.fail {
		return errors.New("reload failed")
	}
	fr.reloads++
	fr.at = time.Now()
	return nil
}

func (fr *fakeReloader) ReloadTime() time.Time { return fr.at }

type testEnv struct {
	server   *Server
	sessions *session.Manager
	reloader *fakeReloader
}

func newTestEnv() *testEnv {
	te := &testEnv{
		server:   NewServer(),
		sessions: session.NewManager(),
		reloader: &fakeReloader{},
	}
	te.server.RegisterBuiltins(&Env{
		Sessions: te.sessions,
		Actors:   actor.NewManager(storagememory.Open()),
		Hotfix:   te.reloader,
	})
	return te
}

func (te *testEnv) call(t *testing.T, cmd string, params url.Values) (Result, json.RawMessage) {
	req := httptest.NewRequest(http.MethodGet, APIPath+cmd+"?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	te.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Result
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad response %q: %v", rec.Body.String(), err)
	}
	return body.Result, body.Data
}

func (te *testEnv) login(id int64) *fakeChannel {
	ch := &fakeChannel{id: id}
	te.sessions.Add(&session.Session{ActorID: idgen.ActorID(id), Channel: ch, LoginTime: time.Now()})
	return ch
}

func TestUndefinedCommand(t *testing.T) {
	te := newTestEnv()
	res, _ := te.call(t, "no_such_command", nil)
	assert.Equal(t, CodeUndefined, res.Code)
}

func TestOnlineCountAndList(t *testing.T) {
	te := newTestEnv()
	for id := int64(1); id <= 5; id++ {
		te.login(id)
	}

	res, data := te.call(t, "online_count", nil)
	assert.Equal(t, CodeSuccess, res.Code)
	assert.Equal(t, "5", string(data))

	res, data = te.call(t, "online_list", url.Values{"page_size": {"2"}, "page_index": {"1"}})
	assert.Equal(t, CodeSuccess, res.Code)
	var list []OnlineInfo
	assert.Equal(t, nil, json.Unmarshal(data, &list))
	assert.Equal(t, 2, len(list))
	assert.Equal(t, int64(3), list[0].ActorID)
	assert.Equal(t, int64(4), list[1].ChannelID)

	res, _ = te.call(t, "online_list", url.Values{"page_size": {"x"}})
	assert.Equal(t, CodeParamError, res.Code)
}

func TestKick(t *testing.T) {
	te := newTestEnv()
	ch := te.login(7)

	res, data := te.call(t, "kick", url.Values{"actor_id": {"7"}})
	assert.Equal(t, CodeSuccess, res.Code)
	assert.Equal(t, "true", string(data))
	assert.T(t, ch.closed)
	assert.Equal(t, 0, te.sessions.Count())

	res, data = te.call(t, "kick", url.Values{"actor_id": {"7"}})
	assert.Equal(t, CodeSuccess, res.Code)
	assert.Equal(t, "false", string(data))

	res, _ = te.call(t, "kick", nil)
	assert.Equal(t, CodeParamError, res.Code)
}

func TestReload(t *testing.T) {
	te := newTestEnv()
	res, _ := te.call(t, "reload", nil)
	assert.Equal(t, CodeSuccess, res.Code)
	assert.Equal(t, 1, te.reloader.reloads)

	te.reloader.fail = true
	res, _ = te.call(t, "reload", nil)
	assert.Equal(t, CodeActionFailed, res.Code)
}

func TestSaveAllAndStatus(t *testing.T) {
	te := newTestEnv()
	res, _ := te.call(t, "save_all", nil)
	assert.Equal(t, CodeSuccess, res.Code)

	res, data := te.call(t, "status", nil)
	assert.Equal(t, CodeSuccess, res.Code)
	var st Status
	assert.Equal(t, nil, json.Unmarshal(data, &st))
	assert.T(t, st.Pid > 0)
	assert.T(t, st.RSS > 0)
}

func TestNotRunning(t *testing.T) {
	te := newTestEnv()
	te.server.SetRunningChecker(func() bool { return false })
	res, _ := te.call(t, "online_count", nil)
	assert.Equal(t, CodeNotRunning, res.Code)
}

func TestPostForm(t *testing.T) {
	te := newTestEnv()
	te.login(9)
	req := httptest.NewRequest(http.MethodPost, APIPath+"kick", strings.NewReader("actor_id=9"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	te.server.ServeHTTP(rec, req)

	var res Result
	assert.Equal(t, nil, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, CodeSuccess, res.Code)
	assert.Equal(t, 0, te.sessions.Count())
}

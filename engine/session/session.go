// Package session binds live client channels to actor ids.
// There is at most one session per actor id; a new login replaces the previous connection.
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/idgen"
	"github.com/xiaonanln/gwactor/engine/proto"
)

// Channel is the connection side of a session, implemented by netutil.NetChannel
type Channel interface {
	ID() int64
	WriteFrame(msgType int32, payload []byte) error
	Close() error
	IsClosed() bool
	SetSessionID(id int64)
	RemoveSessionID()
}

// Session is the binding of one channel to one actor
type Session struct {
	ActorID   idgen.ActorID
	Channel   Channel
	Sign      string // client signature, e.g. device id
	LoginTime time.Time
}

func (s *Session) String() string {
	return fmt.Sprintf("Session<%d|conn %d>", s.ActorID, s.Channel.ID())
}

// Manager is the table of sessions, indexed by actor id and by channel id
type Manager struct {
	lock      sync.RWMutex
	byActor   map[idgen.ActorID]*Session
	byChannel map[int64]*Session
	onRemoved func(actorID idgen.ActorID)
}

// NewManager creates an empty session manager
func NewManager() *Manager {
	return &Manager{
		byActor:   map[idgen.ActorID]*Session{},
		byChannel: map[int64]*Session{},
	}
}

// SetOnRemoved sets the hook called after a session is removed (not replaced)
func (m *Manager) SetOnRemoved(onRemoved func(actorID idgen.ActorID)) {
	m.onRemoved = onRemoved
}

// Add binds the session. A previous session of the same actor on another channel is replaced:
// the old channel is told it logged in elsewhere if the signature differs, then closed.
// If the channel was bound to another actor, that binding is removed.
func (m *Manager) Add(s *Session) {
	if s.LoginTime.IsZero() {
		s.LoginTime = time.Now()
	}
	chID := s.Channel.ID()

	m.lock.Lock()
	replaced := m.byActor[s.ActorID]
	if replaced != nil {
		delete(m.byChannel, replaced.Channel.ID())
		if replaced.Channel.ID() == chID {
			replaced = nil
		}
	}
	switched := m.byChannel[chID]
	if switched != nil {
		delete(m.byActor, switched.ActorID)
	}
	m.byActor[s.ActorID] = s
	m.byChannel[chID] = s
	m.lock.Unlock()

	s.Channel.SetSessionID(int64(s.ActorID))
	gwlog.Infof("session: %s added", s)

	if replaced != nil {
		m.evict(replaced, s)
	}
	if switched != nil && switched.ActorID != s.ActorID {
		m.removed(switched)
	}
}

func (m *Manager) evict(old *Session, by *Session) {
	gwlog.Infof("session: %s replaced by conn %d", old, by.Channel.ID())
	if old.Sign != by.Sign {
		err := proto.Send(old.Channel, &proto.RespPrompt{
			Type:    proto.PromptLoginElsewhere,
			Content: "logged in elsewhere",
		})
		if err != nil {
			gwlog.Debugf("session: notify %s failed: %v", old, err)
		}
	}
	old.Channel.RemoveSessionID()
	old.Channel.Close()
}

func (m *Manager) removed(s *Session) {
	s.Channel.RemoveSessionID()
	gwlog.Infof("session: %s removed", s)
	if m.onRemoved != nil {
		m.onRemoved(s.ActorID)
	}
}

// Remove unbinds the session of the channel and raises the removed hook. It returns false if the channel has no session.
func (m *Manager) Remove(channelID int64) bool {
	m.lock.Lock()
	s := m.byChannel[channelID]
	if s == nil {
		m.lock.Unlock()
		return false
	}
	delete(m.byChannel, channelID)
	if m.byActor[s.ActorID] == s {
		delete(m.byActor, s.ActorID)
	}
	m.lock.Unlock()

	m.removed(s)
	return true
}

// RemoveAll unbinds every session, closing the channels
func (m *Manager) RemoveAll() {
	m.lock.Lock()
	sessions := m.byChannel
	m.byChannel = map[int64]*Session{}
	m.byActor = map[idgen.ActorID]*Session{}
	m.lock.Unlock()

	for _, s := range sessions {
		m.removed(s)
		s.Channel.Close()
	}
	gwlog.Infof("session: %d sessions removed", len(sessions))
}

// KickByActorID removes the session of the actor and closes its channel
func (m *Manager) KickByActorID(actorID idgen.ActorID) bool {
	ch := m.GetChannel(actorID)
	if ch == nil {
		return false
	}
	if !m.Remove(ch.ID()) {
		return false
	}
	ch.Close()
	return true
}

// GetChannel returns the channel bound to the actor, or nil
func (m *Manager) GetChannel(actorID idgen.ActorID) Channel {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if s := m.byActor[actorID]; s != nil {
		return s.Channel
	}
	return nil
}

// ActorIDOf returns the actor bound to the channel
func (m *Manager) ActorIDOf(channelID int64) (idgen.ActorID, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if s := m.byChannel[channelID]; s != nil {
		return s.ActorID, true
	}
	return 0, false
}

// Has returns if the actor has a session
func (m *Manager) Has(actorID idgen.ActorID) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	_, ok := m.byActor[actorID]
	return ok
}

// Count returns the number of sessions
func (m *Manager) Count() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.byActor)
}

// GetPage returns the sessions of page pageIndex (from 0), ordered by actor id
func (m *Manager) GetPage(pageSize int, pageIndex int) []Session {
	if pageSize <= 0 || pageIndex < 0 {
		return nil
	}
	m.lock.RLock()
	all := make([]Session, 0, len(m.byActor))
	for _, s := range m.byActor {
		all = append(all, *s)
	}
	m.lock.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ActorID < all[j].ActorID })
	begin := pageSize * pageIndex
	if begin >= len(all) {
		return nil
	}
	end := begin + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[begin:end]
}

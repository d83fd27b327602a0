// Package idgen allocates actor ids and module-scoped unique ids.
//
// A sharded id is bit-packed as [serverID:14][entityType:7][seconds:30][sequence:12],
// seconds counted from Epoch. A global id is serverID*1000 + entityType and
// addresses a per-server singleton actor. A unique id is packed as
// [module:14][seconds:30][sequence:19].
package idgen

import (
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ActorID identifies one actor
type ActorID int64

// EntityType is the type of entity an actor hosts
type EntityType int

// Module scopes unique ids
type Module int

const (
	serverShift = 49
	typeShift   = 42
	secondShift = 12

	moduleShift       = 49
	moduleSecondShift = 19

	typeMask   = 0x7F
	serverMask = 0x3FFF
	secondMask = (1 << 30) - 1

	// MaxSequence is the maximal per-second sequence of sharded ids
	MaxSequence = (1 << secondShift) - 1
	// MaxModuleSequence is the maximal per-second sequence of unique ids
	MaxModuleSequence = (1 << moduleSecondShift) - 1

	// MinServerID is the minimal valid server id
	MinServerID = 1000
	// MaxServerID is the maximal valid server id
	MaxServerID = 9999
	// MaxGlobalID is the upper bound (exclusive) of global ids
	MaxGlobalID = 10_000_000
	// MaxEntityType is the upper bound (exclusive) of entity types
	MaxEntityType = 1000
)

// Entity types below Separator are sharded, those above are global singletons
const (
	// Role is the player role entity
	Role EntityType = iota + 1
	// Guild entity
	Guild
	// Account is the login account entity
	Account

	// Separator splits sharded and global entity types
	Separator EntityType = 128
)

const (
	// Server is the per-server global singleton
	Server EntityType = Separator + 1 + iota
	// Login is the login subsystem singleton
	Login
	// Chat singleton
	Chat
)

// Unique id modules
const (
	// ModuleItem scopes bag item ids
	ModuleItem Module = iota + 1
	// ModuleMail scopes mail ids
	ModuleMail
)

var (
	// Epoch is the time origin of encoded seconds
	Epoch = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	// ErrInvalidID is returned when decoding an id that can not be decoded
	ErrInvalidID = errors.New("invalid id")
	// ErrInvalidEntityType is returned for entity types out of the allowed range
	ErrInvalidEntityType = errors.New("invalid entity type")
	// ErrInvalidServerID is returned for server ids out of [MinServerID, MaxServerID]
	ErrInvalidServerID = errors.New("invalid server id")
)

// IsGlobal returns if the entity type is a global singleton type
func (t EntityType) IsGlobal() bool {
	return t > Separator
}

func (t EntityType) String() string {
	switch t {
	case Role:
		return "Role"
	case Guild:
		return "Guild"
	case Account:
		return "Account"
	case Server:
		return "Server"
	case Login:
		return "Login"
	case Chat:
		return "Chat"
	}
	return "EntityType(" + strconv.Itoa(int(t)) + ")"
}

type counter struct {
	second int64
	seq    int64
}

// next advances the counter for the current wall-clock second.
// Exhausting the sequence fast-forwards the virtual second.
func (c *counter) next(now int64, maxSeq int64) (int64, int64) {
	if now > c.second {
		c.second = now
		c.seq = 0
	} else if c.seq >= maxSeq {
		c.second++
		c.seq = 0
	} else {
		c.seq++
	}
	return c.second, c.seq
}

// Generator allocates ids. The zero value is not usable, use NewGenerator.
type Generator struct {
	mu      sync.Mutex
	now     func() time.Time
	sharded counter
	unique  counter
}

// NewGenerator creates a Generator. A nil clock means time.Now.
func NewGenerator(clock func() time.Time) *Generator {
	if clock == nil {
		clock = time.Now
	}
	return &Generator{
		now:     clock,
		sharded: counter{second: -1},
		unique:  counter{second: -1},
	}
}

func (g *Generator) seconds() int64 {
	return int64(g.now().Sub(Epoch) / time.Second)
}

func checkServerID(serverID int) error {
	if serverID < MinServerID || serverID > MaxServerID {
		return errors.Wrapf(ErrInvalidServerID, "%d", serverID)
	}
	return nil
}

// NewShardedID allocates a time-ordered id for a sharded entity type
func (g *Generator) NewShardedID(t EntityType, serverID int) (ActorID, error) {
	if t <= 0 || t >= Separator {
		return 0, errors.Wrapf(ErrInvalidEntityType, "%d is not a sharded type", t)
	}
	if err := checkServerID(serverID); err != nil {
		return 0, err
	}

	now := g.seconds()
	g.mu.Lock()
	second, seq := g.sharded.next(now, MaxSequence)
	g.mu.Unlock()

	return ActorID(int64(serverID)<<serverShift | int64(t)<<typeShift | (second&secondMask)<<secondShift | seq), nil
}

// NewUniqueID allocates a time-ordered id scoped to module
func (g *Generator) NewUniqueID(module Module) (int64, error) {
	if module <= 0 || module > serverMask {
		return 0, errors.Errorf("invalid module %d", module)
	}

	now := g.seconds()
	g.mu.Lock()
	second, seq := g.unique.next(now, MaxModuleSequence)
	g.mu.Unlock()

	return int64(module)<<moduleShift | (second&secondMask)<<moduleSecondShift | seq, nil
}

// NewGlobalID returns the id of the singleton actor of type t on server serverID
func NewGlobalID(t EntityType, serverID int) (ActorID, error) {
	if !t.IsGlobal() || t >= MaxEntityType {
		return 0, errors.Wrapf(ErrInvalidEntityType, "%d is not a global type", t)
	}
	if err := checkServerID(serverID); err != nil {
		return 0, err
	}
	return ActorID(serverID*1000 + int(t)), nil
}

// NewID returns the global id for global types and allocates a sharded id otherwise
func (g *Generator) NewID(t EntityType, serverID int) (ActorID, error) {
	if t.IsGlobal() {
		return NewGlobalID(t, serverID)
	}
	return g.NewShardedID(t, serverID)
}

// ShardedIDBegin returns the smallest possible sharded id of type t on server serverID
func ShardedIDBegin(t EntityType, serverID int) ActorID {
	return ActorID(int64(serverID)<<serverShift | int64(t)<<typeShift)
}

// IsGlobal returns if id is a global id
func IsGlobal(id ActorID) bool {
	return id > 0 && id < MaxGlobalID
}

// DecodeEntityType returns the entity type encoded in id
func DecodeEntityType(id ActorID) (EntityType, error) {
	if id <= 0 {
		return 0, errors.Wrapf(ErrInvalidID, "%d", id)
	}
	if IsGlobal(id) {
		return EntityType(id % 1000), nil
	}
	return EntityType((int64(id) >> typeShift) & typeMask), nil
}

// DecodeServerID returns the server id encoded in id
func DecodeServerID(id ActorID) (int, error) {
	if id <= 0 {
		return 0, errors.Wrapf(ErrInvalidID, "%d", id)
	}
	if IsGlobal(id) {
		return int(id / 1000), nil
	}
	return int((int64(id) >> serverShift) & serverMask), nil
}

// DecodeCreationTime returns the (virtual) allocation time of a sharded id
func DecodeCreationTime(id ActorID) (time.Time, error) {
	if id <= 0 || IsGlobal(id) {
		return time.Time{}, errors.Wrapf(ErrInvalidID, "%d has no creation time", id)
	}
	second := (int64(id) >> secondShift) & secondMask
	return Epoch.Add(time.Duration(second) * time.Second), nil
}

// DecodeUniqueModule returns the module encoded in a unique id
func DecodeUniqueModule(id int64) (Module, error) {
	if id <= 0 {
		return 0, errors.Wrapf(ErrInvalidID, "%d", id)
	}
	return Module(id >> moduleShift), nil
}

// MustEntityType decodes the entity type and panics on invalid id
func MustEntityType(id ActorID) EntityType {
	t, err := DecodeEntityType(id)
	if err != nil {
		panic(err)
	}
	return t
}

var defaultGenerator = NewGenerator(nil)

// NewShardedID allocates a sharded id from the default generator
func NewShardedID(t EntityType, serverID int) (ActorID, error) {
	return defaultGenerator.NewShardedID(t, serverID)
}

// NewUniqueID allocates a unique id from the default generator
func NewUniqueID(module Module) (int64, error) {
	return defaultGenerator.NewUniqueID(module)
}

// NewID allocates an id for type t from the default generator
func NewID(t EntityType, serverID int) (ActorID, error) {
	return defaultGenerator.NewID(t, serverID)
}

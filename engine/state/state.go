// Package state implements CacheState, the persisted part of a component
// with hash based dirty tracking.
package state

import (
	"bytes"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"
	"github.com/xiaonanln/gwactor/engine/gwlog"
)

// State is a persisted record embedding CacheState
type State interface {
	GetCacheState() *CacheState
}

// CacheState is embedded (inline) by every persisted state
type CacheState struct {
	Id          int64 `bson:"_id" msgpack:"_id"`
	IsDeleted   bool  `bson:"IsDeleted" msgpack:"IsDeleted"`
	DeleteTime  int64 `bson:"DeleteTime" msgpack:"DeleteTime"`
	CreateId    int64 `bson:"CreateId" msgpack:"CreateId"`
	CreateTime  int64 `bson:"CreateTime" msgpack:"CreateTime"`
	UpdateCount int64 `bson:"UpdateCount" msgpack:"UpdateCount"`
	UpdateTime  int64 `bson:"UpdateTime" msgpack:"UpdateTime"`

	owner    State
	lastHash uint64
	loaded   bool
	saved    bool
}

// GetCacheState returns the state itself, so that embedding types implement State
func (cs *CacheState) GetCacheState() *CacheState {
	return cs
}

// AfterLoad binds the owning record and establishes the baseline hash.
// isNew marks a state that has never been persisted.
func (cs *CacheState) AfterLoad(owner State, isNew bool) {
	if owner.GetCacheState() != cs {
		gwlog.Panicf("state %d: owner does not embed this CacheState", cs.Id)
	}
	cs.owner = owner
	cs.loaded = true
	if isNew {
		if cs.CreateTime == 0 {
			cs.CreateTime = time.Now().Unix()
		}
		cs.saved = false
	} else {
		cs.saved = true
	}
	if h, err := cs.hash(); err == nil {
		cs.lastHash = h
	} else {
		gwlog.Errorf("state %d: hash after load failed: %v", cs.Id, err)
	}
}

// Encode returns the msgpack form of the owning record, as it is persisted
func (cs *CacheState) Encode() ([]byte, error) {
	if cs.owner == nil {
		return nil, errors.Errorf("state %d is not loaded", cs.Id)
	}
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).SortMapKeys(true).Encode(cs.owner); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// hash digests the canonical form of the owning record: msgpack leaves the order of most map kinds random,
// so maps are turned into key-sorted pair lists before encoding
func (cs *CacheState) hash() (uint64, error) {
	if cs.owner == nil {
		return 0, errors.Errorf("state %d is not loaded", cs.Id)
	}
	c, err := canonical(reflect.ValueOf(cs.owner))
	if err != nil {
		return 0, err
	}
	data, err := msgpack.Marshal(c)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}

var timeType = reflect.TypeOf(time.Time{})

func canonical(v reflect.Value) (interface{}, error) {
	switch v.Kind() {
	case reflect.Invalid:
		return nil, nil
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return canonical(v.Elem())
	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		type pair struct {
			key []byte
			val interface{}
		}
		pairs := make([]pair, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k, err := canonical(iter.Key())
			if err != nil {
				return nil, err
			}
			kb, err := msgpack.Marshal(k)
			if err != nil {
				return nil, err
			}
			val, err := canonical(iter.Value())
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, pair{kb, val})
		}
		sort.Slice(pairs, func(i, j int) bool { return bytes.Compare(pairs[i].key, pairs[j].key) < 0 })
		out := make([]interface{}, 0, 2*len(pairs))
		for _, p := range pairs {
			out = append(out, p.key, p.val)
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 && v.Kind() == reflect.Slice {
			return v.Bytes(), nil
		}
		out := make([]interface{}, v.Len())
		for i := range out {
			e, err := canonical(v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case reflect.Struct:
		if v.Type() == timeType {
			return v.Interface().(time.Time).UnixNano(), nil
		}
		t := v.Type()
		out := make([]interface{}, 0, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.PkgPath != "" || strings.HasPrefix(f.Tag.Get("msgpack"), "-") {
				continue
			}
			e, err := canonical(v.Field(i))
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return nil, errors.Errorf("can not hash %s", v.Type())
	}
	return v.Interface(), nil
}

// IsChanged compares the record with the baseline.
// The encoded bytes are returned so that callers can persist them.
func (cs *CacheState) IsChanged() (bool, []byte) {
	data, err := cs.Encode()
	if err != nil {
		gwlog.Errorf("state %d: encode failed: %v", cs.Id, err)
		return true, nil
	}
	h, err := cs.hash()
	if err != nil {
		gwlog.Errorf("state %d: hash failed: %v", cs.Id, err)
		return true, data
	}
	return !cs.saved || h != cs.lastHash, data
}

// IsModified reports whether the record changed since the last load or save
func (cs *CacheState) IsModified() bool {
	changed, _ := cs.IsChanged()
	return changed
}

// IsLoaded returns if AfterLoad was called
func (cs *CacheState) IsLoaded() bool {
	return cs.loaded
}

// BeforeSave updates the audit fields
func (cs *CacheState) BeforeSave() {
	cs.UpdateCount++
	cs.UpdateTime = time.Now().Unix()
}

// AfterSave refreshes the baseline hash after a successful save
func (cs *CacheState) AfterSave() {
	h, err := cs.hash()
	if err != nil {
		gwlog.Errorf("state %d: hash after save failed: %v", cs.Id, err)
		return
	}
	cs.lastHash = h
	cs.saved = true
}

// MarkDeleted soft-deletes the record
func (cs *CacheState) MarkDeleted() {
	cs.IsDeleted = true
	cs.DeleteTime = time.Now().Unix()
}

// Package storagecommon defines the persistence contract shared by the storage backends.
package storagecommon

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"
	"github.com/xiaonanln/typeconv"
)

var (
	// ErrPersistence wraps every failure of a storage backend
	ErrPersistence = errors.New("persistence failure")
	// ErrNotFound is used by backends internally for missing documents
	ErrNotFound = errors.New("not found")
)

// Filter selects documents by equality on top-level fields
type Filter map[string]interface{}

// Store is the persistence contract of actor states. Documents are keyed by collection and id.
type Store interface {
	// Load reads document id into out, found is false if the document does not exist
	Load(ctx context.Context, coll string, id int64, out interface{}) (found bool, err error)
	// Save upserts doc as document id
	Save(ctx context.Context, coll string, id int64, doc interface{}) error
	// Find reads the first document matching filter into out
	Find(ctx context.Context, coll string, filter Filter, out interface{}) (found bool, err error)
	// FindList reads all documents matching filter into the slice pointed by outSlicePtr
	FindList(ctx context.Context, coll string, filter Filter, outSlicePtr interface{}) error
	// Count returns the number of documents matching filter
	Count(ctx context.Context, coll string, filter Filter) (int, error)
	// Delete removes the documents matching filter
	Delete(ctx context.Context, coll string, filter Filter) (int, error)
	Close() error
	// IsEOF returns if err means the backend connection is lost
	IsEOF(err error) bool
}

// Wrap marks err as a persistence failure
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(ErrPersistence, "%s: %v", errors.Errorf(format, args...), err)
}

// EncodeDoc encodes a document in msgpack format
func EncodeDoc(doc interface{}) ([]byte, error) {
	return msgpack.Marshal(doc)
}

// MatchDoc decodes a msgpack document and checks it against filter
func MatchDoc(data []byte, filter Filter) (bool, error) {
	if len(filter) == 0 {
		return true, nil
	}
	var fields map[string]interface{}
	if err := msgpack.Unmarshal(data, &fields); err != nil {
		return false, err
	}
	for key, want := range filter {
		got, ok := fields[key]
		if !ok || !valueEqual(got, want) {
			return false, nil
		}
	}
	return true, nil
}

func isInteger(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func isFloat(v interface{}) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return false
}

func toFloat(v interface{}) float64 {
	if isInteger(v) {
		return float64(typeconv.Int(v))
	}
	return reflect.ValueOf(v).Float()
}

// valueEqual compares a decoded field with a filter value; numbers compare by value regardless of width
func valueEqual(got, want interface{}) bool {
	if isInteger(got) && isInteger(want) {
		return typeconv.Int(got) == typeconv.Int(want)
	}
	if (isInteger(got) || isFloat(got)) && (isInteger(want) || isFloat(want)) {
		return toFloat(got) == toFloat(want)
	}
	return reflect.DeepEqual(got, want)
}

// DecodeDoc decodes a msgpack document into out
func DecodeDoc(data []byte, out interface{}) error {
	return msgpack.Unmarshal(data, out)
}

// DecodeDocList decodes a list of msgpack documents into the slice pointed by outSlicePtr
func DecodeDocList(docs [][]byte, outSlicePtr interface{}) error {
	rv := reflect.ValueOf(outSlicePtr)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return errors.Errorf("FindList: %T is not a pointer to slice", outSlicePtr)
	}

	size := 5
	for _, doc := range docs {
		size += len(doc)
	}
	buf := make([]byte, 0, size)
	buf = appendArrayLen(buf, len(docs))
	for _, doc := range docs {
		buf = append(buf, doc...)
	}
	return msgpack.Unmarshal(buf, outSlicePtr)
}

// appendArrayLen appends a msgpack array header
func appendArrayLen(buf []byte, n int) []byte {
	switch {
	case n < 16:
		return append(buf, 0x90|byte(n))
	case n < 1<<16:
		return append(buf, 0xdc, byte(n>>8), byte(n))
	default:
		return append(buf, 0xdd, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
}

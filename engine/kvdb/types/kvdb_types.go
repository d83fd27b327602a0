// Package kvdbtypes holds the contract between the KVDB and its storage engines.
package kvdbtypes

import "io"

// KVDBEngine is implemented by the KVDB backends (memory, mongodb, redis, redis cluster).
// Engines are only used by the KVDB operation routine, so they need not be goroutine-safe.
type KVDBEngine interface {
	// Get returns "" if key does not exist
	Get(key string) (val string, err error)
	Put(key string, val string) (err error)
	// Find iterates keys in [beginKey, endKey) in key order
	Find(beginKey string, endKey string) (Iterator, error)
	Close()
	// IsConnectionError tells the KVDB to reconnect and retry
	IsConnectionError(err error) bool
}

// Iterator walks the result of KVDBEngine.Find.
// Next returns KVItem{}, io.EOF after the last item.
type Iterator interface {
	Next() (KVItem, error)
}

// KVItem is one key with its value
type KVItem struct {
	Key string
	Val string
}

// ReadAll drains the iterator
func ReadAll(it Iterator) ([]KVItem, error) {
	var items []KVItem
	for {
		item, err := it.Next()
		if err == io.EOF {
			return items, nil
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

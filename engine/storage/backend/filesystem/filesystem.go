// Package storagefilesystem stores every document as one msgpack file.
package storagefilesystem

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xiaonanln/gwactor/engine/consts"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	. "github.com/xiaonanln/gwactor/engine/storage/storagecommon"
)

const fileExt = ".msgpack"

type fileSystemStore struct {
	directory string
}

func getFileName(coll string, id int64) string {
	return coll + "$" + strconv.FormatInt(id, 10) + fileExt
}

func (fs *fileSystemStore) getFilePath(coll string, id int64) string {
	return filepath.Join(fs.directory, getFileName(coll, id))
}

func (fs *fileSystemStore) Load(ctx context.Context, coll string, id int64, out interface{}) (bool, error) {
	data, err := os.ReadFile(fs.getFilePath(coll, id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, DecodeDoc(data, out)
}

func (fs *fileSystemStore) Save(ctx context.Context, coll string, id int64, doc interface{}) error {
	data, err := EncodeDoc(doc)
	if err != nil {
		return err
	}

	saveFile := fs.getFilePath(coll, id)
	if consts.DEBUG_SAVE_LOAD {
		gwlog.Debugf("Saving to file %s: %d bytes", saveFile, len(data))
	}
	tmpFile := saveFile + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpFile, saveFile)
}

// list returns the ids of all documents in coll, ordered
func (fs *fileSystemStore) list(coll string) ([]int64, error) {
	prefix := coll + "$"
	files, err := filepath.Glob(filepath.Join(fs.directory, prefix+"*"+fileExt))
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(files))
	for _, fpath := range files {
		_, fn := filepath.Split(fpath)
		id, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(fn, prefix), fileExt), 10, 64)
		if err != nil {
			gwlog.Errorf("invalid file: %s", fpath)
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (fs *fileSystemStore) match(ctx context.Context, coll string, filter Filter, limit int) ([]int64, [][]byte, error) {
	ids, err := fs.list(coll)
	if err != nil {
		return nil, nil, err
	}
	var matchedIDs []int64
	var matched [][]byte
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		data, err := os.ReadFile(fs.getFilePath(coll, id))
		if err != nil {
			if os.IsNotExist(err) {
				continue // deleted meanwhile
			}
			return nil, nil, err
		}
		ok, err := MatchDoc(data, filter)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			matchedIDs = append(matchedIDs, id)
			matched = append(matched, data)
			if limit > 0 && len(matched) >= limit {
				break
			}
		}
	}
	return matchedIDs, matched, nil
}

func (fs *fileSystemStore) Find(ctx context.Context, coll string, filter Filter, out interface{}) (bool, error) {
	_, docs, err := fs.match(ctx, coll, filter, 1)
	if err != nil || len(docs) == 0 {
		return false, err
	}
	return true, DecodeDoc(docs[0], out)
}

func (fs *fileSystemStore) FindList(ctx context.Context, coll string, filter Filter, outSlicePtr interface{}) error {
	_, docs, err := fs.match(ctx, coll, filter, 0)
	if err != nil {
		return err
	}
	return DecodeDocList(docs, outSlicePtr)
}

func (fs *fileSystemStore) Count(ctx context.Context, coll string, filter Filter) (int, error) {
	_, docs, err := fs.match(ctx, coll, filter, 0)
	return len(docs), err
}

func (fs *fileSystemStore) Delete(ctx context.Context, coll string, filter Filter) (int, error) {
	ids, _, err := fs.match(ctx, coll, filter, 0)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if err := os.Remove(fs.getFilePath(coll, id)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

func (fs *fileSystemStore) Close() error {
	return nil
}

func (fs *fileSystemStore) IsEOF(err error) bool {
	return false
}

// OpenDirectory opens a store in directory, creating it if needed
func OpenDirectory(directory string) (Store, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, err
	}

	return &fileSystemStore{
		directory: directory,
	}, nil
}

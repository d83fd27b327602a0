// Package storagemongodb stores documents in MongoDB, one collection per state type.
package storagemongodb

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	. "github.com/xiaonanln/gwactor/engine/storage/storagecommon"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

const (
	_DEFAULT_DB_NAME = "gwactor"
)

type mongoDBStore struct {
	db *mgo.Database
}

// OpenMongoDB opens mongodb as state storage
func OpenMongoDB(url string, dbname string) (Store, error) {
	gwlog.Debugf("Connecting MongoDB ...")
	session, err := mgo.Dial(url)
	if err != nil {
		return nil, err
	}

	session.SetMode(mgo.Monotonic, true)
	if dbname == "" {
		// if db is not specified, use default
		dbname = _DEFAULT_DB_NAME
	}
	return &mongoDBStore{
		db: session.DB(dbname),
	}, nil
}

func (es *mongoDBStore) getCollection(coll string) *mgo.Collection {
	return es.db.C(coll)
}

func toM(filter Filter) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return bson.M(filter)
}

func (es *mongoDBStore) Load(ctx context.Context, coll string, id int64, out interface{}) (bool, error) {
	err := es.getCollection(coll).FindId(id).One(out)
	if err == mgo.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (es *mongoDBStore) Save(ctx context.Context, coll string, id int64, doc interface{}) error {
	_, err := es.getCollection(coll).UpsertId(id, doc)
	return err
}

func (es *mongoDBStore) Find(ctx context.Context, coll string, filter Filter, out interface{}) (bool, error) {
	err := es.getCollection(coll).Find(toM(filter)).Sort("_id").One(out)
	if err == mgo.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (es *mongoDBStore) FindList(ctx context.Context, coll string, filter Filter, outSlicePtr interface{}) error {
	return es.getCollection(coll).Find(toM(filter)).Sort("_id").All(outSlicePtr)
}

func (es *mongoDBStore) Count(ctx context.Context, coll string, filter Filter) (int, error) {
	return es.getCollection(coll).Find(toM(filter)).Count()
}

func (es *mongoDBStore) Delete(ctx context.Context, coll string, filter Filter) (int, error) {
	info, err := es.getCollection(coll).RemoveAll(toM(filter))
	if err != nil {
		return 0, err
	}
	return info.Removed, nil
}

func (es *mongoDBStore) Close() error {
	es.db.Session.Close()
	return nil
}

func (es *mongoDBStore) IsEOF(err error) bool {
	err = errors.Cause(err)
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

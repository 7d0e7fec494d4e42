package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	apperrors "github.com/tessro/encore/internal/errors"
)

const metaBucket = "_meta"

var versionKey = []byte("version")

// Bolt stores each logical database in its own bbolt file under a data
// directory, with one bucket per store.
type Bolt struct {
	dir string
	dbs map[DB]*bolt.DB
}

// OpenBolt opens (creating when missing) every database in Schemas under dir.
func OpenBolt(dir string) (*Bolt, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, apperrors.Storage("create data dir", err)
	}

	b := &Bolt{dir: dir, dbs: make(map[DB]*bolt.DB, len(Schemas))}
	for _, schema := range Schemas {
		db, err := openSchema(dir, schema)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.dbs[schema.DB] = db
	}
	return b, nil
}

func openSchema(dir string, schema Schema) (*bolt.DB, error) {
	path := filepath.Join(dir, string(schema.DB)+".db")
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, apperrors.Storage("open "+string(schema.DB), err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range schema.Stores {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return err
		}
		if meta.Get(versionKey) == nil {
			return meta.Put(versionKey, []byte(strconv.Itoa(schema.Version)))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, apperrors.Storage("create stores in "+string(schema.DB), err)
	}
	return db, nil
}

// Dir returns the data directory.
func (b *Bolt) Dir() string {
	return b.dir
}

// Version returns the schema version recorded in db.
func (b *Bolt) Version(db DB) (int, error) {
	handle, err := b.handle(db)
	if err != nil {
		return 0, err
	}
	var version int
	err = handle.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(metaBucket))
		if meta == nil {
			return nil
		}
		v, err := strconv.Atoi(string(meta.Get(versionKey)))
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	return version, apperrors.Storage("read version", err)
}

func (b *Bolt) handle(db DB) (*bolt.DB, error) {
	handle, ok := b.dbs[db]
	if !ok {
		return nil, apperrors.Storage(string(db), fmt.Errorf("database not open"))
	}
	return handle, nil
}

func (b *Bolt) bucket(ctx context.Context, db DB, store string) (*bolt.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkStore(db, store); err != nil {
		return nil, err
	}
	return b.handle(db)
}

// Get returns a copy of the value stored under key, or nil when absent.
func (b *Bolt) Get(ctx context.Context, db DB, store, key string) ([]byte, error) {
	handle, err := b.bucket(ctx, db, store)
	if err != nil {
		return nil, err
	}

	var out []byte
	err = handle.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(store)).Get([]byte(key))
		if v != nil {
			out = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Storage("get "+store+"/"+key, err)
	}
	return out, nil
}

// GetAll returns every record in store in key order.
func (b *Bolt) GetAll(ctx context.Context, db DB, store string) ([]Record, error) {
	handle, err := b.bucket(ctx, db, store)
	if err != nil {
		return nil, err
	}

	var records []Record
	err = handle.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(store)).ForEach(func(k, v []byte) error {
			records = append(records, Record{
				Key:   string(k),
				Value: append([]byte{}, v...),
			})
			return nil
		})
	})
	if err != nil {
		return nil, apperrors.Storage("get all "+store, err)
	}
	return records, nil
}

// Put stores value under key, replacing any existing value.
func (b *Bolt) Put(ctx context.Context, db DB, store, key string, value []byte) error {
	handle, err := b.bucket(ctx, db, store)
	if err != nil {
		return err
	}
	err = handle.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(store)).Put([]byte(key), value)
	})
	return apperrors.Storage("put "+store+"/"+key, err)
}

// Delete removes key. Deleting a missing key is not an error.
func (b *Bolt) Delete(ctx context.Context, db DB, store, key string) error {
	handle, err := b.bucket(ctx, db, store)
	if err != nil {
		return err
	}
	err = handle.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(store)).Delete([]byte(key))
	})
	return apperrors.Storage("delete "+store+"/"+key, err)
}

// Clear removes every record in store.
func (b *Bolt) Clear(ctx context.Context, db DB, store string) error {
	handle, err := b.bucket(ctx, db, store)
	if err != nil {
		return err
	}
	err = handle.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(store)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket([]byte(store))
		return err
	})
	return apperrors.Storage("clear "+store, err)
}

// EstimateUsage sums the database file sizes and adds free disk space to
// form the quota.
func (b *Bolt) EstimateUsage(ctx context.Context) (Usage, error) {
	var used uint64
	for _, handle := range b.dbs {
		info, err := os.Stat(handle.Path())
		if err != nil {
			return Usage{}, apperrors.Storage("stat "+handle.Path(), err)
		}
		used += uint64(info.Size())
	}
	return diskUsage(ctx, b.dir, used)
}

// Close closes every database file.
func (b *Bolt) Close() error {
	var errs []error
	for name, handle := range b.dbs {
		if err := handle.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(b.dbs, name)
	}
	return errors.Join(errs...)
}

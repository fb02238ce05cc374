// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package keyspace

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/conceptgraph/conceptgraph/internal/cgerrors"
)

var dataBucket = []byte("data")

// BoltOptions configures the on-disk backend; opaque to callers above
// keyspace per §4.1.1 ("per-keyspace configuration ... is opaque to
// the core").
type BoltOptions struct {
	// NoSync disables fsync-on-commit; only safe for ephemeral/test
	// databases since it breaks the durability half of crash recovery.
	NoSync bool
}

// BoltKeyspace is the on-disk Keyspace backend: one bbolt file per
// keyspace, holding a single bucket of raw key/value pairs. MVCC
// version suffixing happens one layer up, in storage.MVCC.
type BoltKeyspace struct {
	id    ID
	name  string
	dir   string
	db    *bbolt.DB
	bloom *negativeCache
	opts  BoltOptions
}

// OpenBolt opens (creating if absent) the bbolt file backing this
// keyspace under dir/<name>.db.
func OpenBolt(dir string, id ID, name string, opts BoltOptions) (*BoltKeyspace, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cgerrors.Wrap(err, cgerrors.KindKeyspaceOpen, "create keyspace dir")
	}
	path := filepath.Join(dir, name+".db")
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout:      time.Second,
		NoSync:       opts.NoSync,
		FreelistType: bbolt.FreelistArrayType,
	})
	if err != nil {
		return nil, cgerrors.Wrap(err, cgerrors.KindKeyspaceOpen, "open bbolt file").WithContext("path", path)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(dataBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, cgerrors.Wrap(err, cgerrors.KindKeyspaceOpen, "create bucket")
	}
	k := &BoltKeyspace{id: id, name: name, dir: dir, db: db, opts: opts}
	count, _ := k.EstimateKeyCount()
	k.bloom = newNegativeCache(uint64(count))
	if err := k.warmBloom(); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *BoltKeyspace) warmBloom() error {
	return k.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(dataBucket)
		return b.ForEach(func(key, _ []byte) error {
			k.bloom.add(key)
			return nil
		})
	})
}

func (k *BoltKeyspace) ID() ID        { return k.id }
func (k *BoltKeyspace) Name() string  { return k.name }

func (k *BoltKeyspace) Get(key []byte) ([]byte, bool, error) {
	if !k.bloom.maybeContains(key) {
		return nil, false, nil
	}
	var value []byte
	var found bool
	err := k.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(dataBucket).Get(key)
		if v != nil {
			found = true
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, cgerrors.Wrap(err, cgerrors.KindKeyspaceGet, "get").WithContext("keyspace", k.name)
	}
	return value, found, nil
}

func (k *BoltKeyspace) GetPrev(key []byte) ([]byte, []byte, bool, error) {
	var rk, rv []byte
	var found bool
	err := k.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(dataBucket).Cursor()
		ck, cv := c.Seek(key)
		if ck != nil && bytes.Equal(ck, key) {
			rk, rv, found = append([]byte(nil), ck...), append([]byte(nil), cv...), true
			return nil
		}
		// Seek lands on the first key >= arg (or nil at the end); step
		// back one to find the greatest key < arg.
		if ck == nil {
			ck, cv = c.Last()
		} else {
			ck, cv = c.Prev()
		}
		if ck != nil {
			rk, rv, found = append([]byte(nil), ck...), append([]byte(nil), cv...), true
		}
		return nil
	})
	if err != nil {
		return nil, nil, false, cgerrors.Wrap(err, cgerrors.KindKeyspaceGet, "get_prev").WithContext("keyspace", k.name)
	}
	return rk, rv, found, nil
}

func (k *BoltKeyspace) Put(key, value []byte) error {
	err := k.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(dataBucket).Put(key, value)
	})
	if err != nil {
		return cgerrors.Wrap(err, cgerrors.KindKeyspacePut, "put").WithContext("keyspace", k.name)
	}
	k.bloom.add(key)
	return nil
}

func (k *BoltKeyspace) Write(entries []Entry) error {
	err := k.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(dataBucket)
		for _, e := range entries {
			switch e.Op {
			case OpInsert, OpPut:
				if err := b.Put(e.Key, e.Value); err != nil {
					return err
				}
			case OpDelete:
				if err := b.Delete(e.Key); err != nil {
					return err
				}
			case OpRequireExists:
				if b.Get(e.Key) == nil {
					return cgerrors.New(cgerrors.KindKeyspaceWrite, "require_exists failed").WithContext("key", string(e.Key))
				}
			}
		}
		return nil
	})
	if err != nil {
		return cgerrors.Wrap(err, cgerrors.KindKeyspaceWrite, "write batch").WithContext("keyspace", k.name)
	}
	for _, e := range entries {
		if e.Op == OpInsert || e.Op == OpPut {
			k.bloom.add(e.Key)
		}
	}
	return nil
}

type boltIterator struct {
	tx       *bbolt.Tx
	c        *bbolt.Cursor
	r        Range
	key, val []byte
	started  bool
	err      error
}

func (it *boltIterator) Next() bool {
	if it.err != nil {
		return false
	}
	var k, v []byte
	if !it.started {
		it.started = true
		if it.r.Start != nil {
			k, v = it.c.Seek(it.r.Start)
		} else {
			k, v = it.c.First()
		}
	} else {
		k, v = it.c.Next()
	}
	if k == nil || (it.r.End != nil && bytes.Compare(k, it.r.End) >= 0) {
		return false
	}
	it.key = append(it.key[:0], k...)
	it.val = append(it.val[:0], v...)
	return true
}

func (it *boltIterator) Key() []byte   { return it.key }
func (it *boltIterator) Value() []byte { return it.val }
func (it *boltIterator) Err() error    { return it.err }
func (it *boltIterator) Close() error  { return it.tx.Rollback() }

func (k *BoltKeyspace) IterateRange(r Range) (Iterator, error) {
	tx, err := k.db.Begin(false)
	if err != nil {
		return nil, cgerrors.Wrap(err, cgerrors.KindKeyspaceIterate, "begin iteration tx")
	}
	return &boltIterator{tx: tx, c: tx.Bucket(dataBucket).Cursor(), r: r}, nil
}

func (k *BoltKeyspace) EstimateSize() (int64, error) {
	var size int64
	err := k.db.View(func(tx *bbolt.Tx) error {
		size = tx.Size()
		return nil
	})
	return size, err
}

func (k *BoltKeyspace) EstimateKeyCount() (int64, error) {
	var n int64
	err := k.db.View(func(tx *bbolt.Tx) error {
		n = int64(tx.Bucket(dataBucket).Stats().KeyN)
		return nil
	})
	return n, err
}

// Checkpoint writes a consistent copy of the bbolt file into
// dir/<name>.db using bbolt's own hot-backup support.
func (k *BoltKeyspace) Checkpoint(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cgerrors.Wrap(err, cgerrors.KindKeyspaceCheckpoint, "create checkpoint dir")
	}
	dst := filepath.Join(dir, k.name+".db")
	f, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return cgerrors.Wrap(err, cgerrors.KindKeyspaceCheckpoint, "create checkpoint file")
	}
	defer f.Close()
	err = k.db.View(func(tx *bbolt.Tx) error {
		_, err := tx.WriteTo(f)
		return err
	})
	if err != nil {
		return cgerrors.Wrap(err, cgerrors.KindKeyspaceCheckpoint, "write checkpoint").WithContext("keyspace", k.name)
	}
	return nil
}

func (k *BoltKeyspace) Reset() error {
	err := k.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(dataBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(dataBucket)
		return err
	})
	if err != nil {
		return cgerrors.Wrap(err, cgerrors.KindKeyspaceWrite, "reset").WithContext("keyspace", k.name)
	}
	k.bloom.reset(0)
	return nil
}

func (k *BoltKeyspace) Delete() error {
	path := k.db.Path()
	if err := k.db.Close(); err != nil {
		return cgerrors.Wrap(err, cgerrors.KindKeyspaceDelete, "close before delete")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return cgerrors.Wrap(err, cgerrors.KindKeyspaceDelete, "remove file")
	}
	return nil
}

func (k *BoltKeyspace) Close() error {
	if err := k.db.Close(); err != nil {
		return cgerrors.Wrap(err, cgerrors.KindKeyspaceOpen, "close")
	}
	return nil
}

// RestoreFromCheckpoint reconciles this keyspace's on-disk file with
// the one stored under checkpointDir (§4.1.5 step 2). It replaces the
// live file wholesale, which is safe because Restore is only called
// before the WAL replay that follows it.
func RestoreFromCheckpoint(dir, checkpointDir string, id ID, name string, opts BoltOptions) (*BoltKeyspace, error) {
	src := filepath.Join(checkpointDir, name+".db")
	dst := filepath.Join(dir, name+".db")
	if _, err := os.Stat(src); err == nil {
		if err := copyFile(src, dst); err != nil {
			return nil, cgerrors.Wrap(err, cgerrors.KindKeyspaceOpen, "restore from checkpoint").WithContext("keyspace", name)
		}
	}
	return OpenBolt(dir, id, name, opts)
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()
	buf := make([]byte, 1<<20)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			return rerr
		}
	}
}

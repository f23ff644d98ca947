package main

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// BadgerStorage reads the badger database of the pre-gorm server. Records
// under the "licenses:" prefix are msgpack encoded.
type BadgerStorage struct {
	*badger.DB
	Path   string
	loaded bool
}

// NewBadgerStorage opens the badger database at the passed storage location
func NewBadgerStorage(path string) (*BadgerStorage, error) {
	storage := &BadgerStorage{Path: path}
	err := storage.Load()
	return storage, err
}

// LicenseStorage returns a loader for all legacy license records
func (store *BadgerStorage) LicenseStorage() loadLegacyLicenseRecords {
	return func() (records []legacyLicenseRecord, err error) {
		err = store.ReadIterator(
			func(_, v []byte) error {
				var rec legacyLicenseRecord
				if err = msgpack.Unmarshal(v, &rec); err != nil {
					return err
				}
				records = append(records, rec)
				return nil
			}, "licenses:",
		)
		return
	}
}

// ReadIterator uses the passed iterator function to iterate over all the
// key-value-pairs under the given prefix
func (store *BadgerStorage) ReadIterator(do func(k, v []byte) error, prefix string) error {
	return store.View(
		func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			scanPrefix := []byte(prefix)
			for it.Seek(scanPrefix); it.ValidForPrefix(scanPrefix); it.Next() {
				item := it.Item()
				k := item.Key()
				err := item.Value(
					func(v []byte) error {
						return do(k, v)
					},
				)
				if err != nil {
					return err
				}
			}
			return nil
		},
	)
}

// Load loads the database
func (store *BadgerStorage) Load() error {
	if store.loaded {
		return nil
	}
	db, err := badger.Open(badger.DefaultOptions(store.Path).WithReadOnly(true))
	if err != nil {
		return err
	}
	store.DB = db
	store.loaded = true
	return nil
}

// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

package dataset

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// recordKeyPrefix namespaces dataset records inside the Badger keyspace.
const recordKeyPrefix = "r:"

// BadgerStore is a Store backed by BadgerDB. Badger transactions give
// snapshot isolation, so one read transaction is exactly the "single
// consistent read point" an export needs even while CRM traffic keeps
// writing.
type BadgerStore struct {
	db          *badger.DB
	entityOrder []string
}

// storedRecord is the on-disk value envelope; the ID lives in the key.
type storedRecord struct {
	LastUpdated time.Time       `json:"last_updated"`
	Fields      json.RawMessage `json:"fields"`
}

// OpenBadgerStore opens (or creates) a Badger-backed store at dir.
func OpenBadgerStore(dir string, entityOrder []string) (*BadgerStore, error) {
	if entityOrder == nil {
		entityOrder = DefaultEntityOrder
	}

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset store at %s: %w", dir, err)
	}

	return &BadgerStore{db: db, entityOrder: entityOrder}, nil
}

// Export reads the whole keyspace inside one read transaction.
func (s *BadgerStore) Export(_ context.Context) (*Export, error) {
	out := &Export{
		TakenAt:       time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Entities:      make(map[string][]Record),
	}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			entity, id, err := splitRecordKey(item.Key())
			if err != nil {
				return err
			}

			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read record %s/%s: %w", entity, id, err)
			}

			var stored storedRecord
			if err := json.Unmarshal(val, &stored); err != nil {
				return fmt.Errorf("failed to decode record %s/%s: %w", entity, id, err)
			}

			out.Entities[entity] = append(out.Entities[entity], Record{
				ID:          id,
				LastUpdated: stored.LastUpdated,
				Fields:      stored.Fields,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Badger iterates keys in byte order, so records arrive already sorted
	// by ID within each entity.
	out.EntityOrder = orderEntities(out.Entities, s.entityOrder)
	return out, nil
}

// Get returns a record by entity and ID.
func (s *BadgerStore) Get(_ context.Context, entity, id string) (Record, bool, error) {
	key, err := recordKey(entity, id)
	if err != nil {
		return Record{}, false, err
	}

	var record Record
	found := false

	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		var stored storedRecord
		if err := json.Unmarshal(val, &stored); err != nil {
			return fmt.Errorf("failed to decode record %s/%s: %w", entity, id, err)
		}

		record = Record{ID: id, LastUpdated: stored.LastUpdated, Fields: stored.Fields}
		found = true
		return nil
	})
	if err != nil {
		return Record{}, false, err
	}

	return record, found, nil
}

// Put inserts or replaces one record.
func (s *BadgerStore) Put(ctx context.Context, entity string, record Record) error {
	return s.PutBatch(ctx, entity, []Record{record})
}

// PutBatch applies a bounded batch of upserts inside one write transaction.
func (s *BadgerStore) PutBatch(_ context.Context, entity string, records []Record) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, r := range records {
			key, err := recordKey(entity, r.ID)
			if err != nil {
				return err
			}

			val, err := json.Marshal(storedRecord{
				LastUpdated: r.LastUpdated,
				Fields:      r.Fields,
			})
			if err != nil {
				return fmt.Errorf("failed to encode record %s/%s: %w", entity, r.ID, err)
			}

			if err := txn.Set(key, val); err != nil {
				return fmt.Errorf("failed to write record %s/%s: %w", entity, r.ID, err)
			}
		}
		return nil
	})
}

// Close closes the underlying Badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func recordKey(entity, id string) ([]byte, error) {
	if entity == "" || id == "" {
		return nil, fmt.Errorf("entity and id are required")
	}
	if strings.Contains(entity, ":") {
		return nil, fmt.Errorf("entity name must not contain ':': %s", entity)
	}
	return []byte(recordKeyPrefix + entity + ":" + id), nil
}

func splitRecordKey(key []byte) (entity, id string, err error) {
	rest := bytes.TrimPrefix(key, []byte(recordKeyPrefix))
	sep := bytes.IndexByte(rest, ':')
	if sep < 0 {
		return "", "", fmt.Errorf("malformed record key: %s", key)
	}
	return string(rest[:sep]), string(rest[sep+1:]), nil
}

package repo

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/Naveen-807/Franky-Docs-sub000/db/bolt"
)

// UpsertPrice caches the latest snapshot for a pair.
func (s *Store) UpsertPrice(snap *PriceSnapshot) error {
	snap.UpdatedAt = s.now()
	return s.db.PutJSON(bucketPrices, snap.Pair, snap)
}

// Price returns the cached snapshot for a pair.
func (s *Store) Price(pair string) (*PriceSnapshot, error) {
	var snap PriceSnapshot
	if err := s.db.GetJSON(bucketPrices, pair, &snap); err != nil {
		if errors.Is(err, bolt.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: price %s", ErrNotFound, pair)
		}
		return nil, err
	}
	return &snap, nil
}

func docConfigKey(docID, key string) string {
	return docID + "/" + key
}

// SetDocConfig stores one per-document key/value pair.
func (s *Store) SetDocConfig(docID, key, value string) error {
	return s.db.PutJSON(bucketDocConfig, docConfigKey(docID, key), value)
}

// GetDocConfig returns one per-document value, or "" when unset.
func (s *Store) GetDocConfig(docID, key string) (string, error) {
	var value string
	err := s.db.GetJSON(bucketDocConfig, docConfigKey(docID, key), &value)
	if errors.Is(err, bolt.ErrKeyNotFound) {
		return "", nil
	}
	return value, err
}

// ListDocConfig returns all key/value pairs of one document.
func (s *Store) ListDocConfig(docID string) (map[string]string, error) {
	prefix := docID + "/"
	out := make(map[string]string)
	err := s.db.ForEachJSON(bucketDocConfig,
		func() interface{} { return new(string) },
		func(key string, value interface{}) error {
			if strings.HasPrefix(key, prefix) {
				out[strings.TrimPrefix(key, prefix)] = *value.(*string)
			}
			return nil
		})
	return out, err
}

// PutSecretsBlob stores the encrypted secrets of one document. The
// repository only ever sees ciphertext.
func (s *Store) PutSecretsBlob(docID string, blob []byte) error {
	return s.db.PutJSON(bucketSecrets, docID, base64.StdEncoding.EncodeToString(blob))
}

// SecretsBlob returns the encrypted secrets of one document, or
// ErrNotFound when the document was never set up.
func (s *Store) SecretsBlob(docID string) ([]byte, error) {
	var encoded string
	if err := s.db.GetJSON(bucketSecrets, docID, &encoded); err != nil {
		if errors.Is(err, bolt.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: secrets for doc %s", ErrNotFound, docID)
		}
		return nil, err
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// HasSecrets reports whether a document has completed setup.
func (s *Store) HasSecrets(docID string) bool {
	_, err := s.SecretsBlob(docID)
	return err == nil
}

// AppendAudit appends one audit line for a document.
func (s *Store) AppendAudit(docID, message string) error {
	event := AuditEvent{
		DocID:     docID,
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Message:   message,
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		seq, err := bolt.NextSequenceTx(tx, bucketAudit)
		if err != nil {
			return err
		}
		return bolt.PutJSONTx(tx, bucketAudit, seqKey(docID, seq), event)
	})
}

// ListAudit returns the n newest audit lines of one document, newest
// first. n <= 0 returns everything.
func (s *Store) ListAudit(docID string, n int) ([]AuditEvent, error) {
	var events []AuditEvent
	err := s.db.ForEachJSON(bucketAudit,
		func() interface{} { return &AuditEvent{} },
		func(key string, value interface{}) error {
			event := value.(*AuditEvent)
			if event.DocID == docID {
				events = append(events, *event)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	// Keys are sequence-ordered per document, so iteration order within
	// one doc is already oldest-first.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	if n > 0 && len(events) > n {
		events = events[:n]
	}
	return events, nil
}

// AppendActivity appends one recent-activity entry, evicting the oldest
// entries beyond the per-document cap.
func (s *Store) AppendActivity(act *Activity) error {
	act.Timestamp = s.now().UTC().Format(time.RFC3339)
	return s.db.Update(func(tx *bbolt.Tx) error {
		seq, err := bolt.NextSequenceTx(tx, bucketActivity)
		if err != nil {
			return err
		}
		if err := bolt.PutJSONTx(tx, bucketActivity, seqKey(act.DocID, seq), act); err != nil {
			return err
		}

		var keys []string
		err = bolt.ForEachJSONTx(tx, bucketActivity,
			func() interface{} { return &Activity{} },
			func(key string, value interface{}) error {
				if value.(*Activity).DocID == act.DocID {
					keys = append(keys, key)
				}
				return nil
			})
		if err != nil {
			return err
		}
		sort.Strings(keys)
		for len(keys) > s.activityCap {
			if err := bolt.DeleteTx(tx, bucketActivity, keys[0]); err != nil {
				return err
			}
			keys = keys[1:]
		}
		return nil
	})
}

// ListActivity returns the n newest activity entries of one document,
// newest first.
func (s *Store) ListActivity(docID string, n int) ([]Activity, error) {
	var entries []Activity
	err := s.db.ForEachJSON(bucketActivity,
		func() interface{} { return &Activity{} },
		func(key string, value interface{}) error {
			entry := value.(*Activity)
			if entry.DocID == docID {
				entries = append(entries, *entry)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func seqKey(docID string, seq uint64) string {
	return fmt.Sprintf("%s/%012d", docID, seq)
}

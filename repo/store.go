package repo

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Naveen-807/Franky-Docs-sub000/db/bolt"
)

const (
	bucketDocs      = "docs"
	bucketCommands  = "commands"
	bucketSchedules = "schedules"
	bucketOrders    = "orders"
	bucketPrices    = "prices"
	bucketDocConfig = "docconfig"
	bucketSecrets   = "secrets"
	bucketAudit     = "audit"
	bucketActivity  = "activity"
)

// Store provides typed CRUD over the docwallet entities. A Store is safe
// for concurrent use; bbolt serializes writers, which is what makes the
// APPROVED to EXECUTING gate in SetCommandStatus a real compare-and-swap.
type Store struct {
	db *bolt.DB

	// activityCap bounds per-document recent-activity history.
	activityCap int

	// now is stubbed in tests.
	now func() time.Time
}

// Open opens the repository at path, creating all buckets.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path)
	if err != nil {
		return nil, err
	}

	err = db.CreateBuckets(
		bucketDocs, bucketCommands, bucketSchedules, bucketOrders,
		bucketPrices, bucketDocConfig, bucketSecrets, bucketAudit,
		bucketActivity,
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Store{db: db, activityCap: 50, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetActivityCap overrides the recent-activity history bound.
func (s *Store) SetActivityCap(n int) {
	if n > 0 {
		s.activityCap = n
	}
}

// UpsertDoc creates or refreshes a tracked document. Addresses, hash and
// failure counter of an existing record are preserved.
func (s *Store) UpsertDoc(docID, displayName string) error {
	var existing Doc
	err := s.db.GetJSON(bucketDocs, docID, &existing)
	switch {
	case err == nil:
		existing.DisplayName = displayName
		existing.UpdatedAt = s.now()
		return s.db.PutJSON(bucketDocs, docID, existing)
	case errors.Is(err, bolt.ErrKeyNotFound):
		doc := Doc{
			DocID:       docID,
			DisplayName: displayName,
			CreatedAt:   s.now(),
			UpdatedAt:   s.now(),
		}
		return s.db.PutJSON(bucketDocs, docID, doc)
	default:
		return err
	}
}

// Doc returns one tracked document.
func (s *Store) Doc(docID string) (*Doc, error) {
	var doc Doc
	if err := s.db.GetJSON(bucketDocs, docID, &doc); err != nil {
		if errors.Is(err, bolt.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: doc %s", ErrNotFound, docID)
		}
		return nil, err
	}
	return &doc, nil
}

// ListDocs returns all tracked documents ordered by id.
func (s *Store) ListDocs() ([]Doc, error) {
	var docs []Doc
	err := s.db.ForEachJSON(bucketDocs,
		func() interface{} { return &Doc{} },
		func(key string, value interface{}) error {
			docs = append(docs, *value.(*Doc))
			return nil
		})
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].DocID < docs[j].DocID })
	return docs, nil
}

// RemoveDoc drops a document from tracking. Commands, audit history and
// secrets are retained.
func (s *Store) RemoveDoc(docID string) error {
	return s.db.Delete(bucketDocs, docID)
}

// SetDocAddresses records the wallet addresses surfaced by SETUP.
func (s *Store) SetDocAddresses(docID, primary, secondary string) error {
	return s.updateDoc(docID, func(d *Doc) {
		d.PrimaryAddress = primary
		d.SecondaryAddress = secondary
	})
}

// SetDocLastUserHash stores the commands-table hash from the last poll.
func (s *Store) SetDocLastUserHash(docID, hash string) error {
	return s.updateDoc(docID, func(d *Doc) {
		d.LastUserHash = hash
	})
}

// SetDocPollFailures stores the consecutive poll failure count.
func (s *Store) SetDocPollFailures(docID string, n int) error {
	return s.updateDoc(docID, func(d *Doc) {
		d.PollFailures = n
	})
}

func (s *Store) updateDoc(docID string, mutate func(*Doc)) error {
	var doc Doc
	if err := s.db.GetJSON(bucketDocs, docID, &doc); err != nil {
		if errors.Is(err, bolt.ErrKeyNotFound) {
			return fmt.Errorf("%w: doc %s", ErrNotFound, docID)
		}
		return err
	}
	mutate(&doc)
	doc.UpdatedAt = s.now()
	return s.db.PutJSON(bucketDocs, docID, doc)
}

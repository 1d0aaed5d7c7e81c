package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	scansBucket = "scans"
	leadsBucket = "leads"
)

// ErrNotFound is returned when a scan or lead does not exist
var ErrNotFound = errors.New("not found")

// DB defines the interface for database operations
type DB interface {
	// SaveScan saves a card scan to the database
	SaveScan(scan *CardScan) error

	// GetScan retrieves a card scan by ID
	GetScan(id string) (*CardScan, error)

	// ListScans returns all card scans, newest first
	ListScans() ([]*CardScan, error)

	// DeleteScan removes a card scan from the database
	DeleteScan(id string) error

	// SaveLead saves a lead to the database
	SaveLead(lead *Lead) error

	// GetLead retrieves a lead by ID
	GetLead(id string) (*Lead, error)

	// ListLeads returns all leads, newest first
	ListLeads() ([]*Lead, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{scansBucket, leadsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func put(db *bbolt.DB, bucket string, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", bucket, err)
	}
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(id), data)
	})
}

func get(db *bbolt.DB, bucket string, id string, v any) error {
	return db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s %s: %w", bucket, id, ErrNotFound)
		}
		return json.Unmarshal(data, v)
	})
}

// SaveScan saves a card scan to the database
func (b *BoltDB) SaveScan(scan *CardScan) error {
	return put(b.db, scansBucket, scan.ID, scan)
}

// GetScan retrieves a card scan by ID
func (b *BoltDB) GetScan(id string) (*CardScan, error) {
	var scan CardScan
	if err := get(b.db, scansBucket, id, &scan); err != nil {
		return nil, err
	}
	return &scan, nil
}

// ListScans returns all card scans, newest first
func (b *BoltDB) ListScans() ([]*CardScan, error) {
	scans := make([]*CardScan, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(scansBucket)).ForEach(func(k, v []byte) error {
			var scan CardScan
			if err := json.Unmarshal(v, &scan); err != nil {
				return fmt.Errorf("unmarshaling scan: %w", err)
			}
			scans = append(scans, &scan)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(scans, func(i, j int) bool {
		return scans[i].CreatedAt.After(scans[j].CreatedAt)
	})
	return scans, nil
}

// DeleteScan removes a card scan from the database
func (b *BoltDB) DeleteScan(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(scansBucket))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%s %s: %w", scansBucket, id, ErrNotFound)
		}
		return bucket.Delete([]byte(id))
	})
}

// SaveLead saves a lead to the database
func (b *BoltDB) SaveLead(lead *Lead) error {
	return put(b.db, leadsBucket, lead.ID, lead)
}

// GetLead retrieves a lead by ID
func (b *BoltDB) GetLead(id string) (*Lead, error) {
	var lead Lead
	if err := get(b.db, leadsBucket, id, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// ListLeads returns all leads, newest first
func (b *BoltDB) ListLeads() ([]*Lead, error) {
	leads := make([]*Lead, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(leadsBucket)).ForEach(func(k, v []byte) error {
			var lead Lead
			if err := json.Unmarshal(v, &lead); err != nil {
				return fmt.Errorf("unmarshaling lead: %w", err)
			}
			leads = append(leads, &lead)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(leads, func(i, j int) bool {
		return leads[i].CreatedAt.After(leads[j].CreatedAt)
	})
	return leads, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

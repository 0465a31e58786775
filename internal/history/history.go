package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/noraneko-dev/cachesweep/internal/models"

	"github.com/boltdb/bolt"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"lukechampine.com/blake3"
)

var bucketName = []byte("Sweeps")

// DefaultPath returns the sweep history database location under the
// user's home directory.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cachesweep", "history.db"), nil
}

// Connect opens (creating if needed) the history database at path.
func Connect(path string) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return bolt.Open(path, 0600, nil)
}

// Store persists sweep reports in a bolt bucket.
type Store struct {
	db     *bolt.DB
	logger *zap.Logger
}

func NewStore(db *bolt.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Record stores the report keyed by the blake3 digest of its JSON form
// and returns the digest. Recording the same report twice is a no-op.
func (s *Store) Record(report *models.SweepReport) ([32]byte, error) {
	var digest [32]byte

	marshalled, err := json.Marshal(report)
	if err != nil {
		return digest, err
	}
	digest = blake3.Sum256(marshalled)

	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}

		if bucket.Get(digest[:]) != nil {
			s.logger.Debug("Report already recorded", zap.String("digest", fmt.Sprintf("%x", digest)))
			return nil
		}

		return bucket.Put(digest[:], marshalled)
	})

	return digest, err
}

// List returns all recorded reports, newest first.
func (s *Store) List() ([]models.SweepReport, error) {
	var reports []models.SweepReport

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(_, v []byte) error {
			var report models.SweepReport
			if err := json.Unmarshal(v, &report); err != nil {
				return err
			}

			reports = append(reports, report)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartedAt.After(reports[j].StartedAt)
	})

	return reports, nil
}

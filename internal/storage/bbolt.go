package storage

import (
	"fmt"
	"time"

	"missionboard/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketPassport = []byte("passport")
	keySession     = []byte("passport")
)

type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPassport)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// PutSession overwrites the stored session.
func (s *BboltStorage) PutSession(session models.Session) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPassport)
		dbSession := &DBSession{
			Token:               session.Token,
			DisplayName:         session.DisplayName,
			AvatarURL:           session.AvatarURL,
			MissionSuccessCount: session.MissionSuccessCount,
			MissionJoinCount:    session.MissionJoinCount,
		}
		data, err := dbSession.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		return b.Put(dbSession.Key(), data)
	})
}

// GetSession returns models.ErrNotFound when nobody is logged in.
func (s *BboltStorage) GetSession() (models.Session, error) {
	var dbSession DBSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPassport).Get(keySession)
		if data == nil {
			return models.ErrNotFound
		}
		return dbSession.UnmarshalBinary(data)
	})
	if err != nil {
		return models.Session{}, err
	}

	return models.Session{
		Token:               dbSession.Token,
		DisplayName:         dbSession.DisplayName,
		AvatarURL:           dbSession.AvatarURL,
		MissionSuccessCount: dbSession.MissionSuccessCount,
		MissionJoinCount:    dbSession.MissionJoinCount,
	}, nil
}

func (s *BboltStorage) DeleteSession() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPassport).Delete(keySession)
	})
}

// HasSession reports whether the session key is present.
func (s *BboltStorage) HasSession() (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketPassport).Get(keySession) != nil
		return nil
	})
	return found, err
}

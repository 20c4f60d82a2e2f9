package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"missionboard/internal/models"

	"go.etcd.io/bbolt"
)

func TestStorage(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "storage_test")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	dbPath := filepath.Join(tmpDir, "test.db")
	store, err := NewBboltStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	t.Run("Empty", func(t *testing.T) {
		_, err := store.GetSession()
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		found, err := store.HasSession()
		if err != nil {
			t.Fatalf("HasSession failed: %v", err)
		}
		if found {
			t.Error("expected no session")
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		session := models.Session{
			Token:               "tok",
			DisplayName:         "Alice",
			AvatarURL:           "https://example.com/a.png",
			MissionSuccessCount: 3,
			MissionJoinCount:    5,
		}
		if err := store.PutSession(session); err != nil {
			t.Fatalf("PutSession failed: %v", err)
		}

		got, err := store.GetSession()
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if got != session {
			t.Errorf("expected %+v, got %+v", session, got)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := store.PutSession(models.Session{Token: "tok2", DisplayName: "Bob"}); err != nil {
			t.Fatalf("PutSession failed: %v", err)
		}
		got, err := store.GetSession()
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if got.Token != "tok2" || got.AvatarURL != "" {
			t.Errorf("session not overwritten: %+v", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.DeleteSession(); err != nil {
			t.Fatalf("DeleteSession failed: %v", err)
		}
		found, err := store.HasSession()
		if err != nil {
			t.Fatalf("HasSession failed: %v", err)
		}
		if found {
			t.Error("session key still present after delete")
		}
		// Deleting twice is fine.
		if err := store.DeleteSession(); err != nil {
			t.Errorf("second DeleteSession failed: %v", err)
		}
	})

	t.Run("Corrupt", func(t *testing.T) {
		err := store.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketPassport).Put(keySession, []byte{0xc1})
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := store.GetSession(); err == nil {
			t.Error("expected error for corrupt session")
		}
		_ = store.DeleteSession()
	})
}

func TestStorage_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	store, err := NewBboltStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	if err := store.PutSession(models.Session{Token: "persisted", DisplayName: "Carol"}); err != nil {
		t.Fatalf("PutSession failed: %v", err)
	}
	_ = store.Close()

	store, err = NewBboltStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	got, err := store.GetSession()
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Token != "persisted" {
		t.Errorf("expected persisted token, got %q", got.Token)
	}
}

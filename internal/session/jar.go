package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/dgraph-io/badger/v4"
)

var sessionKey = []byte("session:current")

// Jar persists the session between CLI runs. Entries carry a TTL so an
// expired login disappears the same way the browser cookie did.
type Jar struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenJar opens the jar at dir; an empty dir keeps it in memory.
func OpenJar(dir string, ttl time.Duration) (*Jar, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session jar: %w", err)
	}
	return &Jar{db: db, ttl: ttl}, nil
}

func (j *Jar) Close() error {
	return j.db.Close()
}

// Save stores sess and stamps its expiry.
func (j *Jar) Save(sess model.Session) (model.Session, error) {
	sess.ExpiresAt = time.Now().Add(j.ttl).UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return sess, err
	}
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(sessionKey, data).WithTTL(j.ttl))
	})
	return sess, err
}

// Load returns nil without error when there is no live session.
func (j *Jar) Load() (*model.Session, error) {
	var sess model.Session
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !sess.ExpiresAt.IsZero() && time.Now().After(sess.ExpiresAt) {
		return nil, nil
	}
	return &sess, nil
}

func (j *Jar) Clear() error {
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey)
	})
}

// Current makes the jar usable as a Provider.
func (j *Jar) Current() *model.Session {
	sess, err := j.Load()
	if err != nil {
		return nil
	}
	return sess
}

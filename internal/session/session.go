package session

import (
	"sync"
	"time"

	"github.com/bilyardvmetro/quill/internal/model"
)

// Provider hands out the signed-in user, or nil when nobody is signed in.
type Provider interface {
	Current() *model.Session
}

// Holder keeps one session in memory and drops it once it expires.
type Holder struct {
	mu   sync.RWMutex
	sess *model.Session
	now  func() time.Time
}

func NewHolder(sess *model.Session) *Holder {
	return &Holder{sess: sess, now: time.Now}
}

func (h *Holder) Current() *model.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.sess == nil || h.sess.Token == "" {
		return nil
	}
	if !h.sess.ExpiresAt.IsZero() && !h.now().Before(h.sess.ExpiresAt) {
		return nil
	}
	s := *h.sess
	return &s
}

func (h *Holder) Set(sess *model.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sess = sess
}

func (h *Holder) Clear() { h.Set(nil) }

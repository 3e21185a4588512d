package web

import (
	"encoding/gob"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// FlashKind selects how a notification is styled.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// Flash is a transient notification shown once on the next rendered page.
type Flash struct {
	Kind    FlashKind
	Message string
}

func init() {
	gob.Register(Flash{})
}

// FlashConfig configures the cookie holding pending notifications.
type FlashConfig struct {
	// Name is the cookie name.
	Name string
	// Key authenticates the cookie. A random key is generated when empty,
	// so pending notifications do not survive a restart.
	Key []byte
	// Secure marks the cookie HTTPS-only.
	Secure bool
}

// FlashStore keeps notifications between a redirect and the page it leads
// to.
type FlashStore struct {
	store sessions.Store
	name  string
}

// NewFlashStore creates a cookie-backed FlashStore.
func NewFlashStore(cfg FlashConfig) (*FlashStore, error) {
	if cfg.Name == "" {
		cfg.Name = "catalog_flash"
	}
	key := cfg.Key
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
		if key == nil {
			return nil, errors.New("generate flash cookie key")
		}
	}

	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &FlashStore{store: store, name: cfg.Name}, nil
}

// Add queues a notification for the next page. It must be called before the
// response is written.
func (f *FlashStore) Add(w http.ResponseWriter, r *http.Request, kind FlashKind, msg string) {
	s, err := f.store.Get(r, f.name)
	if err != nil {
		// A stale or tampered cookie still yields a fresh session.
		zctx.From(r.Context()).Debug("Discarding flash cookie", zap.Error(err))
	}
	s.AddFlash(Flash{Kind: kind, Message: msg})
	if err := s.Save(r, w); err != nil {
		zctx.From(r.Context()).Warn("Save flash", zap.Error(err))
	}
}

// Pop returns and clears the pending notifications. It must be called before
// the response is written.
func (f *FlashStore) Pop(w http.ResponseWriter, r *http.Request) []Flash {
	if _, err := r.Cookie(f.name); err != nil {
		return nil
	}
	s, err := f.store.Get(r, f.name)
	if err != nil {
		zctx.From(r.Context()).Debug("Discarding flash cookie", zap.Error(err))
	}

	var out []Flash
	for _, v := range s.Flashes() {
		if fl, ok := v.(Flash); ok {
			out = append(out, fl)
		}
	}
	if err := s.Save(r, w); err != nil {
		zctx.From(r.Context()).Warn("Clear flash", zap.Error(err))
	}
	return out
}

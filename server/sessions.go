package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/xhad/yatra/internal/models"
	"github.com/xhad/yatra/pkg/rag"
)

const sessionCookie = "yatra_session"

// SessionFactory builds the retrieval session for a new visitor.
type SessionFactory func(id string) (*rag.Session, error)

// visitor is the per-browser state: the lazily built index and the last plan.
type visitor struct {
	id        string
	session   *rag.Session
	generator *rag.Generator

	mu   sync.Mutex
	last *models.Itinerary
}

func (v *visitor) lastItinerary() *models.Itinerary {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

func (v *visitor) setLast(it *models.Itinerary) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.last = it
}

type sessionCache struct {
	mu      sync.Mutex
	closing sync.WaitGroup
	lru     *expirable.LRU[string, *visitor]
	factory SessionFactory
	chat    rag.Completer
	topK    int
	log     *zap.Logger
}

func newSessionCache(size int, ttl time.Duration, factory SessionFactory, chat rag.Completer, topK int, log *zap.Logger) *sessionCache {
	c := &sessionCache{
		factory: factory,
		chat:    chat,
		topK:    topK,
		log:     log,
	}
	// The LRU holds its lock while evicting; a session may be mid-build, so
	// closing happens off that lock.
	onEvict := func(id string, v *visitor) {
		c.closing.Add(1)
		go func() {
			defer c.closing.Done()
			v.session.Close()
			log.Debug("session closed", zap.String("session", id))
		}()
	}
	c.lru = expirable.NewLRU[string, *visitor](size, onEvict, ttl)
	return c
}

// lookup returns the visitor for the request's cookie, if any.
func (c *sessionCache) lookup(r *http.Request) (*visitor, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	return c.lru.Get(cookie.Value)
}

// obtain returns the request's visitor, creating one and its cookie when needed.
func (c *sessionCache) obtain(r *http.Request) (*visitor, *http.Cookie, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.lookup(r); ok {
		return v, nil, nil
	}

	id := uuid.NewString()
	session, err := c.factory(id)
	if err != nil {
		return nil, nil, err
	}
	generator, err := rag.NewGenerator(session, c.chat, rag.GeneratorConfig{TopK: c.topK, Logger: c.log})
	if err != nil {
		session.Close()
		return nil, nil, err
	}

	v := &visitor{id: id, session: session, generator: generator}
	c.lru.Add(id, v)
	c.log.Debug("session started", zap.String("session", id))

	return v, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// drop forgets the request's visitor, closing its index.
func (c *sessionCache) drop(r *http.Request) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return
	}
	c.lru.Remove(cookie.Value)
}

func (c *sessionCache) len() int {
	return c.lru.Len()
}

// purge evicts every visitor and waits for their sessions to close.
func (c *sessionCache) purge() {
	c.lru.Purge()
	c.closing.Wait()
}

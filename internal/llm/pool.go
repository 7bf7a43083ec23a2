package llm

import (
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultPoolSize = 16

// ClientPool hands out Ollama clients keyed by base URL so per-request
// overrides share a rate limiter with earlier requests to the same server.
type ClientPool struct {
	base  Config
	mu    sync.Mutex
	cache *lru.Cache[string, *OllamaClient]
}

// NewClientPool creates a pool whose clients use base for everything but
// the base URL.
func NewClientPool(base Config, size int) (*ClientPool, error) {
	if size <= 0 {
		size = defaultPoolSize
	}
	cache, err := lru.New[string, *OllamaClient](size)
	if err != nil {
		return nil, fmt.Errorf("creating client cache: %w", err)
	}
	return &ClientPool{base: base, cache: cache}, nil
}

// Base returns the pool's default transport configuration.
func (p *ClientPool) Base() Config {
	return p.base
}

// Get returns the client for baseURL, or the default server when baseURL
// is blank.
func (p *ClientPool) Get(baseURL string) (*OllamaClient, error) {
	key := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if key == "" {
		key = strings.TrimRight(strings.TrimSpace(p.base.BaseURL), "/")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.cache.Get(key); ok {
		return c, nil
	}
	cfg := p.base
	cfg.BaseURL = key
	c, err := NewOllamaClient(cfg)
	if err != nil {
		return nil, err
	}
	p.cache.Add(c.BaseURL(), c)
	if key != c.BaseURL() {
		p.cache.Add(key, c)
	}
	return c, nil
}

// internal/fieldbus/pool.go
package fieldbus

import "sync"

// Pool opens one Client per unique endpoint and hands out the shared
// connection to every device on it.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*Client
	dial    func(Config) (*Client, error)
}

func NewPool() *Pool {
	return &Pool{
		clients: make(map[string]*Client),
		dial:    New,
	}
}

// Get returns the client for cfg.Endpoint, connecting on first use.
func (p *Pool) Get(cfg Config) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[cfg.Endpoint]; ok {
		return c, nil
	}
	c, err := p.dial(cfg)
	if err != nil {
		return nil, err
	}
	p.clients[cfg.Endpoint] = c
	return c, nil
}

// Close closes every opened client and returns the first error.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var first error
	for ep, c := range p.clients {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
		delete(p.clients, ep)
	}
	return first
}

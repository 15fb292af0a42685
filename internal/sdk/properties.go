package sdk

import (
	"strconv"
	"sync"
)

// Properties is the SDK's key/value store. Every value is sent with each
// evaluation and can be targeted by intercept rules. The zero value is ready
// to use.
type Properties struct {
	mu   sync.RWMutex
	vals map[string]string
}

func newProperties() *Properties {
	return &Properties{vals: map[string]string{}}
}

func (p *Properties) SetString(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.vals == nil {
		p.vals = map[string]string{}
	}
	p.vals[key] = value
}

func (p *Properties) SetNumber(key string, value float64) {
	p.SetString(key, strconv.FormatFloat(value, 'f', -1, 64))
}

func (p *Properties) Get(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.vals[key]
	return v, ok
}

// All returns a copy of every property.
func (p *Properties) All() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string, len(p.vals))
	for k, v := range p.vals {
		out[k] = v
	}
	return out
}

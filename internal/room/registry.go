package room

import (
	"encoding/json"
	"fmt"
)

// CardModule presents one card type. The session enables a module by calling
// one of its mode methods and releases it with Disable.
type CardModule interface {
	AlphaMode(data json.RawMessage) error
	BetaMode(data json.RawMessage) error
	Disable()
	Toolbar() fmt.Stringer
	Container() fmt.Stringer
}

type Registry struct {
	modules map[CardType]CardModule
}

func NewRegistry(modules map[CardType]CardModule) *Registry {
	r := &Registry{modules: make(map[CardType]CardModule, len(modules))}
	for t, m := range modules {
		r.modules[t] = m
	}
	return r
}

// Lookup fails with ErrUnsupportedCard for types this client does not know.
func (r *Registry) Lookup(t CardType) (CardModule, error) {
	m, ok := r.modules[t]
	if !ok || m == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCard, t)
	}
	return m, nil
}

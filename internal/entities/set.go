package entities

import "github.com/untoldecay/treehouse/internal/types"

// HandlerSet looks up a registered Handler by the HandlerKey a node type's
// registry.Config names in its EntityBinding list.
type HandlerSet map[string]*Handler

// Lookup returns the handler for key, or (nil, false) if none is bound.
func (s HandlerSet) Lookup(key string) (*Handler, bool) {
	h, ok := s[key]
	return h, ok
}

// MustLookup returns the handler for key or a KindInvalidArgument error.
func (s HandlerSet) MustLookup(key string) (*Handler, error) {
	h, ok := s[key]
	if !ok {
		return nil, types.NewError(types.KindInvalidArgument, "HandlerSet.MustLookup", "no handler bound for key: "+key, nil)
	}
	return h, nil
}

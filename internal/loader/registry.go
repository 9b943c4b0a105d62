package loader

import "fmt"

// Registry maps source kinds to their adapters.
type Registry struct {
	adapters map[Kind]Interface
}

// NewRegistry creates a registry with the built-in adapters registered.
func NewRegistry() *Registry {
	r := &Registry{
		adapters: make(map[Kind]Interface),
	}

	r.adapters[KindDelimited] = NewDelimited()
	r.adapters[KindWorkbook] = NewWorkbook()

	return r
}

// Register adds or replaces the adapter for a kind. This is the typed
// extension point for custom source formats.
func (r *Registry) Register(kind Kind, a Interface) {
	r.adapters[kind] = a
}

// Resolve returns the adapter for a kind. Unknown kinds, the declared but
// unimplemented markdown-table kind, and the custom kind (which requires a
// directly supplied adapter) are configuration errors, raised before any
// row runs.
func (r *Registry) Resolve(kind Kind) (Interface, error) {
	switch kind {
	case KindMarkdownTable:
		if _, ok := r.adapters[kind]; !ok {
			return nil, fmt.Errorf("%w: %q is declared but has no adapter", ErrUnknownKind, kind)
		}
	case KindCustom:
		return nil, fmt.Errorf("%w: %q requires a directly supplied adapter", ErrUnknownKind, kind)
	}

	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return a, nil
}

package extract

import (
	"path/filepath"
	"strings"
	"sync"
)

// Registry maps file extensions to decoders.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder // extension (without dot, lower case) → decoder
	names    map[string]Decoder // format name → decoder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[string]Decoder),
		names:    make(map[string]Decoder),
	}
}

// Register adds a decoder under the given format name for each extension.
func (r *Registry) Register(name string, d Decoder, extensions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[name] = d
	for _, ext := range extensions {
		r.decoders[strings.ToLower(strings.TrimPrefix(ext, "."))] = d
	}
}

// Lookup returns the decoder for a file path based on its extension, or nil.
func (r *Registry) Lookup(path string) Decoder {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.decoders[ext]
}

// Format returns the decoder registered under a format name, or nil.
func (r *Registry) Format(name string) Decoder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[name]
}

// Extensions returns the set of all registered file extensions (without dot).
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.decoders))
	for ext := range r.decoders {
		exts[ext] = true
	}
	return exts
}

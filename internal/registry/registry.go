// Package registry deduplicates backend handles by canonicalized
// construction arguments.
//
// Two requests for the same protocol with equal option sets (in any
// insertion order) observe the same handle, and therefore share the same
// connections and listing cache. The registry is an explicit service with
// its own lifecycle rather than a hidden global, so tests can run against
// isolated instances.
package registry

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsbridge/fsbridge/internal/dircache"
	fserrors "github.com/fsbridge/fsbridge/pkg/errors"
	"github.com/fsbridge/fsbridge/pkg/types"
)

// Factory constructs a backend from canonicalized options.
type Factory func(options map[string]string) (types.Backend, error)

// Handle is a shared, process-lived reference to one configured backend.
// All files opened against equal configuration flow through one Handle and
// share its listing cache.
type Handle struct {
	Backend  types.Backend
	Protocol string

	// Token is the canonical identity of this handle's configuration.
	Token string

	// Listings is the shared directory-listing cache. Safe for concurrent
	// use; writers invalidate, readers tolerate misses.
	Listings *dircache.Cache
}

type entry struct {
	once   sync.Once
	handle *Handle
	err    error
}

// Registry maps (protocol, canonical options) to a single Handle.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	disabled  map[string]bool
	entries   map[string]*entry

	listingTTL      time.Duration
	listingCapacity uint64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		disabled:  make(map[string]bool),
		entries:   make(map[string]*entry),
	}
}

// RegisterFactory installs the constructor for a protocol, replacing any
// previous registration.
func (r *Registry) RegisterFactory(protocol string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[protocol] = f
}

// SetCaching toggles instance reuse for a protocol. With caching disabled
// every GetOrCreate constructs a fresh handle, which is useful in tests
// that must not share state between calls.
func (r *Registry) SetCaching(protocol string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[protocol] = !enabled
}

// SetListingConfig sets the TTL and capacity applied to the listing cache
// of handles constructed afterwards. Zero values select the dircache
// defaults. Handles already constructed keep their existing cache.
func (r *Registry) SetListingConfig(ttl time.Duration, capacity uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listingTTL = ttl
	r.listingCapacity = capacity
}

// GetOrCreate returns the shared handle for (protocol, options),
// constructing it on first use. Construction runs at most once per token;
// concurrent callers for the same token block until it completes and then
// observe the same handle (or the same construction error).
func (r *Registry) GetOrCreate(protocol string, options map[string]string) (*Handle, error) {
	r.mu.Lock()
	factory, ok := r.factories[protocol]
	if !ok {
		r.mu.Unlock()
		return nil, fserrors.E("get_or_create", protocol,
			fserrors.ErrMalformedPath, fmt.Errorf("protocol not known: %s", protocol))
	}
	token := Token(protocol, options)
	ttl, capacity := r.listingTTL, r.listingCapacity

	if r.disabled[protocol] {
		r.mu.Unlock()
		return construct(factory, protocol, token, options, ttl, capacity)
	}

	e, ok := r.entries[token]
	if !ok {
		e = &entry{}
		r.entries[token] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.handle, e.err = construct(factory, protocol, token, options, ttl, capacity)
	})
	if e.err != nil {
		// Do not pin a failed construction; a later call may succeed.
		r.mu.Lock()
		if r.entries[token] == e {
			delete(r.entries, token)
		}
		r.mu.Unlock()
		return nil, e.err
	}
	return e.handle, nil
}

// Clear evicts all entries for one protocol. Handles already held by open
// files remain fully usable; eviction only stops future reuse.
func (r *Registry) Clear(protocol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := protocol + ":"
	for token := range r.entries {
		if strings.HasPrefix(token, prefix) {
			delete(r.entries, token)
		}
	}
}

// ClearAll evicts every entry.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*entry)
}

// Len reports the number of cached handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Token derives the canonical identity of a configuration. Option order
// never matters: keys are sorted before hashing, so permuted but equal
// option maps produce identical tokens.
func Token(protocol string, options map[string]string) string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(options[k])
		b.WriteByte(';')
	}
	sum := md5.Sum([]byte(b.String()))
	return protocol + ":" + hex.EncodeToString(sum[:])
}

func construct(factory Factory, protocol, token string, options map[string]string,
	listingTTL time.Duration, listingCapacity uint64) (*Handle, error) {
	backend, err := factory(options)
	if err != nil {
		return nil, fserrors.IO("construct", protocol, err)
	}
	return &Handle{
		Backend:  backend,
		Protocol: protocol,
		Token:    token,
		Listings: dircache.New(listingTTL, listingCapacity),
	}, nil
}

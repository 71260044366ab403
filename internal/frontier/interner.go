package frontier

import (
	"sync"

	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
)

// Symbol is a stable, crawl-lifetime identifier for an interned URL key.
// Symbols are never reused or reassigned once issued.
type Symbol int

// Interner deduplicates URL keys with O(1) membership and insertion while
// keeping each distinct key's storage to a single copy. Symbols are stable
// for the lifetime of the crawl; the interner never evicts individual
// entries short of a full Clear/Drain.
type Interner struct {
	mu      sync.Mutex
	index   map[string]Symbol // blake3 digest of the key -> symbol
	symbols []string          // symbol -> original key, append-only
}

// NewInterner constructs an empty interner.
func NewInterner() *Interner {
	return &Interner{index: make(map[string]Symbol)}
}

// Insert interns key, returning its symbol and whether this call is the one
// that actually added it (false when key was already present).
func (in *Interner) Insert(key string) (Symbol, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	digest := in.digest(key)
	if sym, ok := in.index[digest]; ok {
		return sym, false
	}

	sym := Symbol(len(in.symbols))
	in.symbols = append(in.symbols, key)
	in.index[digest] = sym
	return sym, true
}

// Contains reports whether key has already been interned.
func (in *Interner) Contains(key string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	_, ok := in.index[in.digest(key)]
	return ok
}

// Len returns the number of distinct keys interned so far.
func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.symbols)
}

// Clear resets the interner to empty, invalidating every previously issued
// symbol. Only an explicit reset between crawl runs should call this.
func (in *Interner) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.index = make(map[string]Symbol)
	in.symbols = nil
}

// Drain returns every interned key, in insertion order, and clears the
// interner as Clear does.
func (in *Interner) Drain() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := in.symbols
	in.index = make(map[string]Symbol)
	in.symbols = nil
	return out
}

// ExtendWithNew interns every key in keys and returns only the subset that
// was not already present, in the order encountered.
func (in *Interner) ExtendWithNew(keys []string) []string {
	var fresh []string
	for _, k := range keys {
		if _, inserted := in.Insert(k); inserted {
			fresh = append(fresh, k)
		}
	}
	return fresh
}

// digest collapses an arbitrary-length key to a fixed-size map key via
// blake3, keeping the index's memory footprint independent of URL length;
// the original strings live once each in the append-only symbols slice.
func (in *Interner) digest(key string) string {
	d, err := hashutil.HashBytes([]byte(key), hashutil.HashAlgoBLAKE3)
	if err != nil {
		// HashAlgoBLAKE3 is always a supported algorithm; HashBytes only
		// errors on an unrecognized algorithm constant.
		return key
	}
	return d
}

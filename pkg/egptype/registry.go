package egptype

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erasmus-gp/egpcore/pkg/egperr"
	"github.com/erasmus-gp/egpcore/pkg/egplog"
	"github.com/erasmus-gp/egpcore/pkg/egpsign"
)

var log = egplog.Logger("egptype")

const (
	keyPrefixUID    = "t/u/"
	keyPrefixName   = "t/n/"
	keyPrefixSource = "s/"
	keyMaxXUID      = "x/"
)

// Registry is the process-wide TypeRegistry (spec §3.1, §4.3): lookup of
// TypeDefs by name or UID, ancestor/descendant closures, and XUID
// allocation, backed by an embedded Badger KV store (the teacher's primary
// storage engine, pkg/storage/badger.go) rather than a SQL table — Badger
// supplies durable row-per-type storage and iteration while the schema and
// row layout stay entirely in this package, which is why using it here does
// not reach into the "database driver / SQL tables" area spec §1 scopes
// out.
//
// Initialisation is lazy: the backing store opens on construction, but the
// types bundle itself is only parsed the first time EnsureLoaded is called
// with a bundle path whose hash isn't already recorded in the sources table.
type Registry struct {
	mu sync.RWMutex

	db *badger.DB

	typeCache       *lru.Cache[int32, *TypeDef]
	nameCache       *lru.Cache[string, int32]
	ancestorsCache  *lru.Cache[int32, map[int32]*TypeDef]
	descendantsCache *lru.Cache[int32, map[int32]*TypeDef]

	devProfile bool
}

// NewRegistry opens (creating if necessary) a Badger-backed registry rooted
// at dir, with four LRU caches (spec §4.3): type-by-UID and name-to-UID are
// both sized by typeCacheSize, the ancestor and descendant closure caches by
// their own arguments.
func NewRegistry(dir string, typeCacheSize, ancestorCacheSize, descendantCacheSize int, devProfile bool) (*Registry, error) {
	opts := badger.DefaultOptions(filepath.Join(dir, "types.badger")).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("egptype: opening registry store: %w", err)
	}

	r := &Registry{db: db, devProfile: devProfile}
	if r.typeCache, err = lru.New[int32, *TypeDef](max1(typeCacheSize)); err != nil {
		return nil, err
	}
	if r.nameCache, err = lru.New[string, int32](max1(typeCacheSize)); err != nil {
		return nil, err
	}
	if r.ancestorsCache, err = lru.New[int32, map[int32]*TypeDef](max1(ancestorCacheSize)); err != nil {
		return nil, err
	}
	if r.descendantsCache, err = lru.New[int32, map[int32]*TypeDef](max1(descendantCacheSize)); err != nil {
		return nil, err
	}
	return r, nil
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Close releases the backing store.
func (r *Registry) Close() error { return r.db.Close() }

// bundleTypeDef is the on-disk JSON shape for one entry of a types bundle
// (spec §6.5). UID may be a bare integer or a bitfield object; Parents are
// given by name and resolved to UIDs during EnsureLoaded.
type bundleTypeDef struct {
	UID      json.RawMessage  `json:"uid"`
	Depth    *int32           `json:"depth"`
	Abstract bool             `json:"abstract"`
	Default  *string          `json:"default"`
	Imports  []bundleImport   `json:"imports"`
	Parents  []string         `json:"parents"`
}

type bundleImport struct {
	Module string `json:"module"`
	Symbol string `json:"symbol"`
	Alias  string `json:"alias"`
}

// EnsureLoaded verifies bundlePath's detached signature against
// publicKeyPEM, then — unless its SHA-256 already appears in the sources
// table — parses the bundle and (re)populates the backing store (spec
// §4.3's initialisation sequence, §6.5).
func (r *Registry) EnsureLoaded(bundlePath string, publicKeyPEM []byte) error {
	ok, err := egpsign.VerifyFileSignature(bundlePath, publicKeyPEM, "")
	if err != nil || !ok {
		return fmt.Errorf("egptype: verifying types bundle: %w", err)
	}

	sidecarHash, err := sidecarFileHash(bundlePath)
	if err != nil {
		return err
	}

	alreadyLoaded, err := r.hasSource(sidecarHash)
	if err != nil {
		return err
	}
	if alreadyLoaded {
		log.WithField("hash", sidecarHash).Debug("types bundle already loaded, skipping reparse")
		return nil
	}

	raw, err := readFile(bundlePath)
	if err != nil {
		return err
	}
	var bundle map[string]bundleTypeDef
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return fmt.Errorf("egptype: parsing types bundle: %w", err)
	}

	if err := r.loadBundle(bundle); err != nil {
		return err
	}
	return r.recordSource(sidecarHash)
}

func (r *Registry) loadBundle(bundle map[string]bundleTypeDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Pass 1: resolve every name to its UID.
	nameToUID := make(map[string]int32, len(bundle))
	for name, bd := range bundle {
		uid, err := decodeUID(bd.UID)
		if err != nil {
			return fmt.Errorf("egptype: %s: %w", name, err)
		}
		nameToUID[name] = uid
	}

	// Pass 2: resolve parent names to UIDs, build reverse children index.
	children := make(map[int32][]int32)
	built := make(map[int32]*TypeDef, len(bundle))

	for name, bd := range bundle {
		uid := nameToUID[name]
		parentUIDs := make([]int32, 0, len(bd.Parents))
		for _, pname := range bd.Parents {
			puid, ok := nameToUID[pname]
			if !ok {
				return fmt.Errorf("egptype: %s: parent %q: %w", name, pname, egperr.ErrNotFound)
			}
			parentUIDs = append(parentUIDs, puid)
			children[puid] = append(children[puid], uid)
		}

		imports := make([]ImportDef, 0, len(bd.Imports))
		for _, imp := range bd.Imports {
			imports = append(imports, ImportDef{Module: imp.Module, Symbol: imp.Symbol, Alias: imp.Alias})
		}

		depth := int32(0)
		if bd.Depth != nil {
			depth = *bd.Depth
		}
		def, hasDef := "", false
		if bd.Default != nil {
			def, hasDef = *bd.Default, true
		}

		td, err := NewTypeDef(name, uid, depth, bd.Abstract, def, hasDef, imports, parentUIDs, nil)
		if err != nil {
			return fmt.Errorf("egptype: constructing %s: %w", name, err)
		}
		built[uid] = td
	}

	// Attach children now that the full reverse index is known, then persist.
	for uid, td := range built {
		kids := append([]int32(nil), children[uid]...)
		sort.Slice(kids, func(i, j int) bool { return kids[i] < kids[j] })
		withChildren, err := NewTypeDef(td.Name(), uid, td.Depth(), td.Abstract(), firstOr(td.Default()), hasDefault(td), td.Imports(), td.Parents(), kids)
		if err != nil {
			return err
		}
		if err := r.persist(withChildren); err != nil {
			return err
		}
		r.typeCache.Add(uid, withChildren)
		r.nameCache.Add(withChildren.Name(), uid)
	}

	if err := r.synthesizeVariants(built); err != nil {
		return err
	}

	return nil
}

func firstOr(s string, _ bool) string { return s }
func hasDefault(td *TypeDef) bool {
	_, ok := td.Default()
	return ok
}

// synthesizeVariants adds the fx=1..7 abstract function-variant UIDs for
// every concrete template type (tt>0) not already present, per the
// SUPPLEMENTED FEATURES section of SPEC_FULL.md (grounded in
// original_source's types_def_store.py variant synthesis). It does not
// synthesise egp_wc_<x>_<y> output-wildcard meta-types; those exist only if
// the bundle lists them.
func (r *Registry) synthesizeVariants(built map[int32]*TypeDef) error {
	for uid, td := range built {
		b := Unpack(uid)
		if b.TT == 0 || b.IO != FXForm || td.Abstract() {
			continue
		}
		for fx := uint8(1); fx <= 7; fx++ {
			variant := BitfieldUID{TT: b.TT, IO: FXForm, FX: fx, XUID: b.XUID}
			vuid, err := variant.Pack()
			if err != nil {
				return err
			}
			if _, ok := r.typeCache.Get(vuid); ok {
				continue
			}
			name := fmt.Sprintf("%s_fx%d", td.Name(), fx)
			variantTD, err := NewTypeDef(name, vuid, td.Depth(), true, "", false, nil, []int32{uid}, nil)
			if err != nil {
				return err
			}
			if err := r.persist(variantTD); err != nil {
				return err
			}
			r.typeCache.Add(vuid, variantTD)
			r.nameCache.Add(name, vuid)
		}
	}
	return nil
}

func decodeUID(raw json.RawMessage) (int32, error) {
	var asInt int32
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return asInt, nil
	}
	var asDict struct {
		TT   uint8  `json:"tt"`
		IO   int    `json:"io"`
		FX   uint8  `json:"fx"`
		XUID uint16 `json:"xuid"`
		X    uint8  `json:"x"`
		Y    uint8  `json:"y"`
	}
	if err := json.Unmarshal(raw, &asDict); err != nil {
		return 0, fmt.Errorf("egptype: uid must be an int or bitfield object: %w", err)
	}
	b := BitfieldUID{TT: asDict.TT, IO: IOForm(asDict.IO), FX: asDict.FX, XUID: asDict.XUID, X: asDict.X, Y: asDict.Y}
	packed, err := b.Pack()
	if err != nil {
		return 0, err
	}
	return packed, nil
}

// Contains reports whether key (a name or UID) resolves to a TypeDef.
func (r *Registry) Contains(key any) bool {
	_, err := r.resolve(key)
	return err == nil
}

// Get resolves key (a string name or int32 UID) to its TypeDef, returning
// egperr.ErrNotFound on failure. Results are served from, and populate, the
// bounded LRU cache described in spec §4.3.
func (r *Registry) Get(key any) (*TypeDef, error) {
	return r.resolve(key)
}

func (r *Registry) resolve(key any) (*TypeDef, error) {
	switch k := key.(type) {
	case int32:
		return r.getByUID(k)
	case int:
		return r.getByUID(int32(k))
	case string:
		return r.getByName(k)
	case *TypeDef:
		return r.getByUID(k.UID())
	default:
		return nil, fmt.Errorf("egptype: unsupported key type %T: %w", key, egperr.ErrNotFound)
	}
}

func (r *Registry) getByUID(uid int32) (*TypeDef, error) {
	r.mu.RLock()
	if td, ok := r.typeCache.Get(uid); ok {
		r.mu.RUnlock()
		return td, nil
	}
	r.mu.RUnlock()

	td, err := r.loadFromStore(uid)
	if err != nil {
		return nil, err
	}
	r.typeCache.Add(uid, td)
	return td, nil
}

func (r *Registry) getByName(name string) (*TypeDef, error) {
	r.mu.RLock()
	if uid, ok := r.nameCache.Get(name); ok {
		r.mu.RUnlock()
		return r.getByUID(uid)
	}
	r.mu.RUnlock()

	var uid int32
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefixName + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			uid = int32(binary.BigEndian.Uint32(val))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("egptype: %s: %w", name, egperr.ErrNotFound)
	}
	r.nameCache.Add(name, uid)
	return r.getByUID(uid)
}

func (r *Registry) loadFromStore(uid int32) (*TypeDef, error) {
	var td *TypeDef
	err := r.db.View(func(txn *badger.Txn) error {
		key := make([]byte, len(keyPrefixUID)+4)
		copy(key, keyPrefixUID)
		binary.BigEndian.PutUint32(key[len(keyPrefixUID):], uint32(uid))
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			parsed, err := decodeStoredTypeDef(val)
			if err != nil {
				return err
			}
			td = parsed
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("egptype: uid %d: %w", uid, egperr.ErrNotFound)
	}
	return td, nil
}

// Ancestors returns the set of TypeDefs reachable by following `parents`
// from td, including td itself (spec §4.3). The closure is computed
// iteratively with an explicit work-stack, never recursively, so it
// tolerates arbitrarily deep inheritance DAGs.
func (r *Registry) Ancestors(td *TypeDef) (map[int32]*TypeDef, error) {
	return r.closure(td, r.ancestorsCache, (*TypeDef).Parents)
}

// Descendants returns the set of TypeDefs reachable by following `children`
// from td, including td itself (spec §4.3).
func (r *Registry) Descendants(td *TypeDef) (map[int32]*TypeDef, error) {
	return r.closure(td, r.descendantsCache, (*TypeDef).Children)
}

func (r *Registry) closure(td *TypeDef, cache *lru.Cache[int32, map[int32]*TypeDef], next func(*TypeDef) []int32) (map[int32]*TypeDef, error) {
	if td == nil {
		return nil, fmt.Errorf("egptype: nil TypeDef: %w", egperr.ErrNotFound)
	}
	if cached, ok := cache.Get(td.UID()); ok {
		return cached, nil
	}

	result := map[int32]*TypeDef{td.UID(): td}
	stack := []int32{td.UID()}
	for len(stack) > 0 {
		n := len(stack) - 1
		uid := stack[n]
		stack = stack[:n]

		cur, err := r.getByUID(uid)
		if err != nil {
			return nil, err
		}
		for _, adjacent := range next(cur) {
			if _, seen := result[adjacent]; seen {
				continue
			}
			adjTD, err := r.getByUID(adjacent)
			if err != nil {
				return nil, err
			}
			result[adjacent] = adjTD
			stack = append(stack, adjacent)
		}
	}

	cache.Add(td.UID(), result)
	return result, nil
}

// NextXUID returns a fresh XUID within tt's half-space, failing with
// egperr.ErrUIDExhausted once MaxXUID is reached (spec §3.1, §4.3).
func (r *Registry) NextXUID(tt uint8) (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := []byte(fmt.Sprintf("%s%d", keyMaxXUID, tt))
	var current uint16
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			current = binary.BigEndian.Uint16(val)
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("egptype: reading xuid counter: %w", err)
	}

	if current >= MaxXUID {
		return 0, fmt.Errorf("egptype: tt=%d: %w", tt, egperr.ErrUIDExhausted)
	}
	next := current + 1

	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, next)
	if err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf)
	}); err != nil {
		return 0, fmt.Errorf("egptype: persisting xuid counter: %w", err)
	}
	return next, nil
}

// Reset tears down the backing store's contents. Only permitted when the
// registry was constructed with devProfile=true (spec §4.3, §5).
func (r *Registry) Reset() error {
	if !r.devProfile {
		return fmt.Errorf("egptype: Reset requires dev_profile: %w", egperr.ErrInvariantViolation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typeCache.Purge()
	r.nameCache.Purge()
	r.ancestorsCache.Purge()
	r.descendantsCache.Purge()
	return r.db.DropAll()
}

// All returns every TypeDef currently persisted, sorted by UID. Intended for
// reporting and chart rendering, not hot-path lookups (it bypasses the LRU
// caches and reads the full key range directly).
func (r *Registry) All() ([]*TypeDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*TypeDef
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixUID)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			def, err := decodeStoredTypeDef(raw)
			if err != nil {
				return err
			}
			out = append(out, def)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID() < out[j].UID() })
	return out, nil
}

// InheritanceChart renders the type hierarchy as a Mermaid flowchart (spec
// §4.3, SUPPLEMENTED FEATURES #1). When concrete is true, abstract types are
// omitted from the node set and so are the edges from them; a concrete type
// whose parents are all abstract appears with no incoming edge (no edge is
// drawn to a more distant concrete ancestor). Nodes are emitted in ascending
// depth order, matching original_source's
// types_def.py:443 (`sorted(flter, key=lambda x: x.min_depth())`) — root
// types appear before their descendants regardless of UID allocation order.
func (r *Registry) InheritanceChart(concrete bool) (string, error) {
	defs, err := r.All()
	if err != nil {
		return "", err
	}
	byUID := make(map[int32]*TypeDef, len(defs))
	for _, td := range defs {
		byUID[td.UID()] = td
	}

	include := func(td *TypeDef) bool { return !concrete || !td.Abstract() }

	filtered := make([]*TypeDef, 0, len(defs))
	for _, td := range defs {
		if include(td) {
			filtered = append(filtered, td)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Depth() < filtered[j].Depth() })

	var b strings.Builder
	b.WriteString("flowchart TD\n")
	for _, td := range filtered {
		b.WriteString(fmt.Sprintf("    n%d[%q]\n", td.UID(), td.Name()))
	}
	for _, td := range filtered {
		for _, pid := range td.Parents() {
			parent, ok := byUID[pid]
			if !ok || !include(parent) {
				continue
			}
			b.WriteString(fmt.Sprintf("    n%d --> n%d\n", pid, td.UID()))
		}
	}
	return b.String(), nil
}

func (r *Registry) persist(td *TypeDef) error {
	data, err := encodeStoredTypeDef(td)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		uidKey := make([]byte, len(keyPrefixUID)+4)
		copy(uidKey, keyPrefixUID)
		binary.BigEndian.PutUint32(uidKey[len(keyPrefixUID):], uint32(td.UID()))
		if err := txn.Set(uidKey, data); err != nil {
			return err
		}
		uidBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(uidBuf, uint32(td.UID()))
		return txn.Set([]byte(keyPrefixName+td.Name()), uidBuf)
	})
}

func (r *Registry) hasSource(hash string) (bool, error) {
	found := false
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyPrefixSource + hash))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (r *Registry) recordSource(hash string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefixSource+hash), []byte{1})
	})
}

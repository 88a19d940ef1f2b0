package runtime

import (
	iradix "github.com/hashicorp/go-immutable-radix"
)

// suffixTable is the common shape of every Dispatch Table the specification
// describes: discriminator suffix -> handler reference, built once at
// component construction and read many times per §5's "immutable after
// construction" contract.
//
// Matching is "type-URL suffix authority": the runtime discriminates a
// payload by suffix match on its type URL. A plain map only supports exact
// keys, so a naive implementation would need an O(n) scan of every
// registered suffix per dispatch. Instead the table is backed by a radix
// trie over the *reversed* suffix strings (per the specification's own
// design-notes guidance to use a trie for suffix matching): reversing turns
// "is S a suffix of U" into "is reversed(S) a prefix of reversed(U)", which
// the trie answers with a single longest-prefix lookup. Suffix match must be
// non-ambiguous — at most one table entry can ever match a given type URL —
// so put rejects not only an exact duplicate suffix but also any pair where
// one registered suffix is itself a suffix of the other (e.g. "Created" and
// "OrderCreated" would both match ".../OrderCreated"): both directions are a
// construction-time ConfigurationError, never resolved by a "longest wins"
// rule at dispatch time.
type suffixTable[V any] struct {
	tree *iradix.Tree
	kind string // used only in ConfigurationError messages
}

func newSuffixTable[V any](kind string) *suffixTable[V] {
	return &suffixTable[V]{tree: iradix.New(), kind: kind}
}

func reverseKey(s string) []byte {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}

// put registers value under suffix, returning a ConfigurationError if suffix
// exactly duplicates an existing registration, or if suffix and an existing
// registration would ever both match the same type URL — i.e. one is a
// suffix of the other — enforcing "at most one handler per discriminator per
// table" at construction time rather than leaving it to a runtime
// tie-break.
func (t *suffixTable[V]) put(suffix string, value V) error {
	key := reverseKey(suffix)

	if existingKey, _, found := t.tree.Root().LongestPrefix(key); found {
		return t.collisionError(suffix, string(reverseKey(string(existingKey))))
	}

	var longerSuffix string
	t.tree.Root().WalkPrefix(key, func(k []byte, _ any) bool {
		longerSuffix = string(reverseKey(string(k)))
		return true
	})
	if longerSuffix != "" {
		return t.collisionError(suffix, longerSuffix)
	}

	txn := t.tree.Txn()
	txn.Insert(key, any(value))
	t.tree = txn.Commit()
	return nil
}

// collisionError reports that suffix and existing can never be dispatched
// unambiguously: either they are equal, or one is a suffix of the other.
func (t *suffixTable[V]) collisionError(suffix, existing string) error {
	if suffix == existing {
		return NewConfigurationError("%s: duplicate registration for suffix %q", t.kind, suffix)
	}
	return NewConfigurationError("%s: suffix %q is ambiguous with already-registered suffix %q", t.kind, suffix, existing)
}

// match returns the value registered for the longest suffix of typeURL, and
// whether any entry matched at all.
func (t *suffixTable[V]) match(typeURL string) (V, bool) {
	var zero V
	key := reverseKey(typeURL)
	_, raw, found := t.tree.Root().LongestPrefix(key)
	if !found {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// suffixes returns every registered suffix, for descriptor reporting. Order
// is unspecified; callers that need stable output should sort it.
func (t *suffixTable[V]) suffixes() []string {
	var out []string
	t.tree.Root().Walk(func(k []byte, _ any) bool {
		out = append(out, string(reverseKey(string(k))))
		return false
	})
	return out
}

// len reports the number of registered entries.
func (t *suffixTable[V]) len() int {
	return t.tree.Len()
}

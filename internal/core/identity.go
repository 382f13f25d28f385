package core

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// Identity is the deterministic identity of a task instance.
//
// The key is human readable and usable directly as a lookup or log key:
//
//	T1|text=s"hej_hopp"
//	Merge|in_data1<-@<producer hash>:out_data1,in_data2<-@<producer hash>:out_data1
//
// The hash is the hex blake3-256 digest of the key; it is the compact form
// used by stores with key size limits. Identity is comparable and can be
// used as a map key.
type Identity struct {
	key  string
	hash string
}

// HashLen is the length of Identity.Hash in hex characters.
const HashLen = 64

const shortLen = 12

// IdentityFromKey rebuilds an Identity from its key, recomputing the hash.
func IdentityFromKey(key string) Identity {
	if key == "" {
		return Identity{}
	}
	return Identity{key: key, hash: hashKey(key)}
}

func (id Identity) String() string { return id.key }
func (id Identity) Hash() string   { return id.hash }
func (id Identity) IsZero() bool   { return id.key == "" }

// Type returns the task type encoded in the key.
func (id Identity) Type() string {
	t, _, _ := strings.Cut(id.key, "|")
	return t
}

// Short returns a display prefix of the hash.
func (id Identity) Short() string {
	if len(id.hash) <= shortLen {
		return id.hash
	}
	return id.hash[:shortLen]
}

// OutputRef names an output slot of a producer by the producer's identity.
//
// It is a weak reference: it does not keep the producer alive and is resolved
// by lookup.
type OutputRef struct {
	Producer Identity
	Slot     string
}

// String is the canonical encoding used inside consumer identities.
func (r OutputRef) String() string {
	return "@" + r.Producer.Hash() + ":" + r.Slot
}

// ComputeIdentity derives the identity of a task of type typeName.
//
// Parameters and inputs are merged and ordered by name (names are unique
// across both by Definition.Validate). Inputs are keyed by slot name, never
// by the order in which they were bound.
func ComputeIdentity(typeName string, params Params, inputs map[string]OutputRef) Identity {
	entries := make([]string, 0, len(params)+len(inputs))
	for _, e := range params.Canonical() {
		entries = append(entries, e.Name+"="+e.Encoded)
	}
	for slot, ref := range inputs {
		entries = append(entries, slot+"<-"+ref.String())
	}
	sort.Strings(entries)
	key := typeName + "|" + strings.Join(entries, ",")
	return Identity{key: key, hash: hashKey(key)}
}

// Label renders a task by type and parameters only. It is used where a full
// identity is not defined, e.g. for members of a dependency cycle.
func Label(typeName string, params Params) string {
	parts := make([]string, 0, len(params))
	for _, e := range params.Canonical() {
		parts = append(parts, e.Name+"="+e.Encoded)
	}
	return typeName + "|" + strings.Join(parts, ",")
}

func hashKey(key string) string {
	h := blake3.New()
	_, _ = h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}

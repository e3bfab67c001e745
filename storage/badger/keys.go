package badger

import (
	"encoding/binary"

	"github.com/poiesic/kinfolk/core"
)

// Key prefixes for different data types.
// Every prefix ends in ':' so no prefix is a prefix of another.
const (
	passagePrefix         = "psg:"
	personPrefix          = "per:"
	personNamePrefix      = "pername:"
	relationshipPrefix    = "rel:"
	relationshipIdxPrefix = "relper:"
	factPrefix            = "fct:"
	factIdxPrefix         = "fctper:"
	personIDSeq           = "seq:person"
	relationshipIDSeq     = "seq:relationship"
	factIDSeq             = "seq:fact"
)

// makeIDKey generates prefix + BigEndian id so keys sort by ID.
func makeIDKey(prefix string, id core.ID) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePairKey generates a composite index key.
// Format: prefix + owner + id
func makePairKey(prefix string, owner, id core.ID) []byte {
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(owner))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

func makePassageKey(id core.ID) []byte {
	return makeIDKey(passagePrefix, id)
}

func makePersonKey(id core.ID) []byte {
	return makeIDKey(personPrefix, id)
}

func makeRelationshipKey(id core.ID) []byte {
	return makeIDKey(relationshipPrefix, id)
}

func makeFactKey(id core.ID) []byte {
	return makeIDKey(factPrefix, id)
}

// makePersonNameKey generates a key for the name token index.
// Format: prefix + token + 0x00 + personID
func makePersonNameKey(token string, id core.ID) []byte {
	buf := make([]byte, len(personNamePrefix)+len(token)+1+8)
	offset := copy(buf, personNamePrefix)
	offset += copy(buf[offset:], token)
	buf[offset] = 0
	offset++
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePersonNameScanPrefix returns the prefix matching every token that
// starts with fragment.
func makePersonNameScanPrefix(fragment string) []byte {
	return []byte(personNamePrefix + fragment)
}

// idFromKeySuffix reads the trailing eight bytes of an index key.
func idFromKeySuffix(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

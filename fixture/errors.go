package fixture

import "errors"

var (
	// ErrDuplicateKey is returned when two persons share a key.
	ErrDuplicateKey = errors.New("duplicate person key")

	// ErrUnknownPerson is returned when a relationship or fact names a key
	// no person declares.
	ErrUnknownPerson = errors.New("unknown person key")

	// ErrEmbedderRequired is returned when passages are applied without an embedder.
	ErrEmbedderRequired = errors.New("embedder required to seed passages")
)

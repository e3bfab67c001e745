// Package postgres provides a SemanticRetriever and FactStore backed by
// PostgreSQL with the pgvector extension.
//
// Passages live in a table with a vector column and are ranked by cosine
// distance. Persons, relationships and facts live in plain relational
// tables; name fragments are matched with word-prefix regular expressions
// and confirmed in Go so results agree with the badger store.
//
// Schema holds the DDL the store expects.
package postgres

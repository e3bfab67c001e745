// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage provides the storage abstraction layer for Kinfolk.
//
// The question-answering workflow reads through two narrow interfaces:
//
//   - SemanticRetriever: free-text search over indexed passages
//   - FactStore: structured queries over persons, relationships and facts
//
// The write side is described by PassageRepository and GenealogyRepository,
// used by fixture seeding and tests.
//
// # Backends
//
//   - storage/badger: embedded BadgerDB implementation of both repositories
//   - storage/postgres: PostgreSQL with pgvector, read side only
//
// Public constructors return interfaces where a consumer only needs the
// read side; the badger constructors return concrete types so callers can
// share one Backend between repositories.
//
// # Serialization
//
// Records are encoded with the MUS binary format (github.com/mus-format/mus-go).
// Every encoded record starts with a codec version byte.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage

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

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidPassage indicates a Passage failed validation.
	ErrInvalidPassage = errors.New("invalid passage")

	// ErrInvalidPerson indicates a Person failed validation.
	ErrInvalidPerson = errors.New("invalid person")

	// ErrInvalidRelationship indicates a Relationship failed validation.
	ErrInvalidRelationship = errors.New("invalid relationship")

	// ErrInvalidFact indicates a Fact failed validation.
	ErrInvalidFact = errors.New("invalid fact")

	// ErrEmptyContent indicates the Text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptySource indicates a missing source identifier.
	ErrEmptySource = errors.New("source id cannot be empty")

	// ErrEmptyName indicates a person without given name and surname.
	ErrEmptyName = errors.New("person name cannot be empty")

	// ErrInvalidYears indicates a death year before the birth year.
	ErrInvalidYears = errors.New("death year precedes birth year")

	// ErrSelfRelationship indicates a relationship from a person to itself.
	ErrSelfRelationship = errors.New("relationship cannot reference the same person twice")

	// ErrUnknownIntent indicates a string that names no intent.
	ErrUnknownIntent = errors.New("unknown intent")

	// ErrUnknownConfidence indicates a string that names no confidence level.
	ErrUnknownConfidence = errors.New("unknown confidence level")
)

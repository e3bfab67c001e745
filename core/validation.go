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

import (
	"fmt"
)

// ValidatePassage validates a Passage according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - SourceID must not be empty
//
// NOT validated (populated by ingestion):
//   - Vector (can be empty until embedded)
//   - ID (0 means content-based ID is assigned on insert)
func ValidatePassage(p *Passage) error {
	if p == nil {
		return fmt.Errorf("%w: passage is nil", ErrInvalidPassage)
	}
	if p.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPassage, ErrEmptyContent)
	}
	if p.SourceID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPassage, ErrEmptySource)
	}
	return nil
}

// ValidatePerson validates a Person according to domain rules.
//
// Validation rules:
//   - GivenName or Surname must be present
//   - DeathYear must not precede BirthYear when both are known
func ValidatePerson(p *Person) error {
	if p == nil {
		return fmt.Errorf("%w: person is nil", ErrInvalidPerson)
	}
	if p.GivenName == "" && p.Surname == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPerson, ErrEmptyName)
	}
	if p.BirthYear != 0 && p.DeathYear != 0 && p.DeathYear < p.BirthYear {
		return fmt.Errorf("%w: %w", ErrInvalidPerson, ErrInvalidYears)
	}
	return nil
}

// ValidateRelationship validates a Relationship according to domain rules.
func ValidateRelationship(r *Relationship) error {
	if r == nil {
		return fmt.Errorf("%w: relationship is nil", ErrInvalidRelationship)
	}
	if r.Type == "" {
		return fmt.Errorf("%w: type is empty", ErrInvalidRelationship)
	}
	if r.PersonID == r.RelatedID {
		return fmt.Errorf("%w: %w", ErrInvalidRelationship, ErrSelfRelationship)
	}
	return nil
}

// ValidateFact validates a Fact according to domain rules.
func ValidateFact(f *Fact) error {
	if f == nil {
		return fmt.Errorf("%w: fact is nil", ErrInvalidFact)
	}
	if f.PersonID == 0 {
		return fmt.Errorf("%w: person id is zero", ErrInvalidFact)
	}
	if f.Type == "" {
		return fmt.Errorf("%w: type is empty", ErrInvalidFact)
	}
	return nil
}

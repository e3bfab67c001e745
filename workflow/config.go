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

package workflow

import (
	"fmt"
	"time"
)

// Config holds the tunable parameters of the pipeline.
type Config struct {
	// TopK is the number of passages requested from the semantic retriever.
	TopK int `yaml:"top_k"`

	// ExactMatchScore is the relevance given to structured records whose
	// person name matched exactly.
	ExactMatchScore float64 `yaml:"exact_match_score"`

	// PartialMatchScore is the relevance given to other structured records.
	PartialMatchScore float64 `yaml:"partial_match_score"`

	// YearTolerance is how many years two dates may differ before facts
	// about the same event contradict each other.
	YearTolerance int `yaml:"year_tolerance"`

	RouterMaxTokens    int `yaml:"router_max_tokens"`
	ExtractorMaxTokens int `yaml:"extractor_max_tokens"`
	SynthesisMaxTokens int `yaml:"synthesis_max_tokens"`

	// ContextBudget caps the evidence tokens placed in one prompt.
	// Zero derives the budget from the LLM context window.
	ContextBudget int `yaml:"context_budget"`

	// StoreTimeout bounds each retriever and fact store call.
	StoreTimeout time.Duration `yaml:"store_timeout"`

	// CitationOverlap is the share of a sentence's keywords that must appear
	// in an evidence item for the sentence to cite it.
	CitationOverlap float64 `yaml:"citation_overlap"`

	// MaxSourcesListed limits the sources printed by Response.Format.
	MaxSourcesListed int `yaml:"max_sources_listed"`

	// ConfidenceReview asks the LLM for a qualitative rating that may only
	// lower the computed confidence.
	ConfidenceReview bool `yaml:"confidence_review"`
}

const (
	DefaultTopK               = 10
	DefaultExactMatchScore    = 1.0
	DefaultPartialMatchScore  = 0.6
	DefaultYearTolerance      = 1
	DefaultRouterMaxTokens    = 512
	DefaultExtractorMaxTokens = 1024
	DefaultSynthesisMaxTokens = 1024
	DefaultStoreTimeout       = 10 * time.Second
	DefaultCitationOverlap    = 0.5
	DefaultMaxSourcesListed   = 5
)

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		TopK:               DefaultTopK,
		ExactMatchScore:    DefaultExactMatchScore,
		PartialMatchScore:  DefaultPartialMatchScore,
		YearTolerance:      DefaultYearTolerance,
		RouterMaxTokens:    DefaultRouterMaxTokens,
		ExtractorMaxTokens: DefaultExtractorMaxTokens,
		SynthesisMaxTokens: DefaultSynthesisMaxTokens,
		StoreTimeout:       DefaultStoreTimeout,
		CitationOverlap:    DefaultCitationOverlap,
		MaxSourcesListed:   DefaultMaxSourcesListed,
	}
}

// Validate checks that all values are usable.
func (c Config) Validate() error {
	switch {
	case c.TopK <= 0:
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidConfig)
	case c.ExactMatchScore <= 0 || c.ExactMatchScore > 1:
		return fmt.Errorf("%w: exact_match_score must be in (0,1]", ErrInvalidConfig)
	case c.PartialMatchScore <= 0 || c.PartialMatchScore > c.ExactMatchScore:
		return fmt.Errorf("%w: partial_match_score must be in (0,exact_match_score]", ErrInvalidConfig)
	case c.YearTolerance < 0:
		return fmt.Errorf("%w: year_tolerance cannot be negative", ErrInvalidConfig)
	case c.RouterMaxTokens <= 0 || c.ExtractorMaxTokens <= 0 || c.SynthesisMaxTokens <= 0:
		return fmt.Errorf("%w: token limits must be positive", ErrInvalidConfig)
	case c.ContextBudget < 0:
		return fmt.Errorf("%w: context_budget cannot be negative", ErrInvalidConfig)
	case c.StoreTimeout <= 0:
		return fmt.Errorf("%w: store_timeout must be positive", ErrInvalidConfig)
	case c.CitationOverlap <= 0 || c.CitationOverlap > 1:
		return fmt.Errorf("%w: citation_overlap must be in (0,1]", ErrInvalidConfig)
	case c.MaxSourcesListed < 0:
		return fmt.Errorf("%w: max_sources_listed cannot be negative", ErrInvalidConfig)
	}
	return nil
}

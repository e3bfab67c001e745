package core

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored records.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Intent is the closed-set classification of a question's information need.
type Intent int

const (
	// IntentFactual asks for a specific fact ("When was John born?").
	IntentFactual Intent = iota + 1
	// IntentExploratory asks for narrative or general information.
	IntentExploratory
	// IntentRelationship asks about family connections.
	IntentRelationship
	// IntentTimeline asks about chronology.
	IntentTimeline
)

// Intents lists every valid intent in declaration order.
var Intents = []Intent{IntentFactual, IntentExploratory, IntentRelationship, IntentTimeline}

func (i Intent) String() string {
	switch i {
	case IntentFactual:
		return "factual"
	case IntentExploratory:
		return "exploratory"
	case IntentRelationship:
		return "relationship"
	case IntentTimeline:
		return "timeline"
	}
	return fmt.Sprintf("intent(%d)", int(i))
}

// Valid reports whether i is one of the four declared intents.
func (i Intent) Valid() bool {
	return i >= IntentFactual && i <= IntentTimeline
}

// ParseIntent converts a case-insensitive intent name to an Intent.
func ParseIntent(s string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "factual":
		return IntentFactual, nil
	case "exploratory":
		return IntentExploratory, nil
	case "relationship":
		return IntentRelationship, nil
	case "timeline":
		return IntentTimeline, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownIntent, s)
}

func (i Intent) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

// EntityKind categorizes an entity mentioned in a question.
type EntityKind string

const (
	EntityPerson EntityKind = "person"
	EntityPlace  EntityKind = "place"
	EntityDate   EntityKind = "date"
)

// ExtractedEntity is a named entity pulled out of the raw question.
type ExtractedEntity struct {
	Name string     `json:"name"`
	Kind EntityKind `json:"kind"`
	// Normalized holds the canonical value: a title-cased name for persons
	// and places, a year ("1850") or year range ("1850-1860") for dates.
	Normalized string `json:"normalized"`
}

// Origin records which backend produced an evidence item.
type Origin string

const (
	OriginSemantic   Origin = "semantic"
	OriginStructured Origin = "structured"
)

// EvidenceID identifies an evidence item within a single query ("E1", "E2", ...).
type EvidenceID string

// EvidenceItem is a retrieved passage or structured record used as grounding.
type EvidenceItem struct {
	ID       EvidenceID `json:"id"`
	Text     string     `json:"text"`
	SourceID string     `json:"source_id"`
	Locator  string     `json:"locator"`
	Score    float64    `json:"relevance_score"` // always within [0,1]
	Origin   Origin     `json:"origin"`
}

// Predicate names the kind of genealogical event a fact describes.
type Predicate string

const (
	PredicateBirth       Predicate = "birth"
	PredicateDeath       Predicate = "death"
	PredicateMarriage    Predicate = "marriage"
	PredicateImmigration Predicate = "immigration"
	PredicateResidence   Predicate = "residence"
	PredicateOccupation  Predicate = "occupation"
	PredicateBurial      Predicate = "burial"
	PredicateOther       Predicate = "other"
)

var predicateAliases = map[string]Predicate{
	"birth":       PredicateBirth,
	"born":        PredicateBirth,
	"death":       PredicateDeath,
	"died":        PredicateDeath,
	"marriage":    PredicateMarriage,
	"married":     PredicateMarriage,
	"immigration": PredicateImmigration,
	"emigration":  PredicateImmigration,
	"migration":   PredicateImmigration,
	"residence":   PredicateResidence,
	"occupation":  PredicateOccupation,
	"burial":      PredicateBurial,
	"buried":      PredicateBurial,
}

// ParsePredicate maps free-form predicate text onto the known set.
// Unrecognized values map to PredicateOther.
func ParsePredicate(s string) Predicate {
	if p, ok := predicateAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p
	}
	return PredicateOther
}

// ExtractedFact is a normalized fact candidate traced back to one evidence item.
type ExtractedFact struct {
	Subject          string     `json:"subject_entity"`
	Predicate        Predicate  `json:"predicate"`
	Value            string     `json:"value"`
	DateHint         string     `json:"date_hint,omitempty"`
	SourceEvidenceID EvidenceID `json:"source_evidence_id"`
	// Origin is copied from the evidence item the fact was extracted from.
	Origin Origin `json:"origin"`
}

// Span is a half-open byte range [Start, End) of the answer text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Citation links one answer span to every evidence item supporting it.
type Citation struct {
	Span        Span         `json:"span"`
	EvidenceIDs []EvidenceID `json:"evidence_ids"`
}

// ConfidenceLevel is an ordinal rating; larger values are better supported.
type ConfidenceLevel int

const (
	ConfidenceUncertain ConfidenceLevel = iota + 1
	ConfidencePossible
	ConfidenceLikely
	ConfidenceConfirmed
)

func (c ConfidenceLevel) String() string {
	switch c {
	case ConfidenceUncertain:
		return "uncertain"
	case ConfidencePossible:
		return "possible"
	case ConfidenceLikely:
		return "likely"
	case ConfidenceConfirmed:
		return "confirmed"
	}
	return fmt.Sprintf("confidence(%d)", int(c))
}

// ParseConfidence converts a case-insensitive level name.
func ParseConfidence(s string) (ConfidenceLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uncertain":
		return ConfidenceUncertain, nil
	case "possible":
		return ConfidencePossible, nil
	case "likely":
		return ConfidenceLikely, nil
	case "confirmed":
		return ConfidenceConfirmed, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownConfidence, s)
}

func (c ConfidenceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// Stage identifies the workflow component that produced a StageError.
type Stage string

const (
	StageRouter     Stage = "router"
	StageRetrieval  Stage = "retrieval"
	StageExtraction Stage = "extraction"
	StageSynthesis  Stage = "synthesis"
	StageCitation   Stage = "citation"
	StageConfidence Stage = "confidence"
)

// StageError records a failure inside one workflow stage.
// Recoverable errors degrade the answer; the pipeline still completes.
type StageError struct {
	Stage       Stage  `json:"stage"`
	Recoverable bool   `json:"recoverable"`
	Message     string `json:"message"`
	Err         error  `json:"-"`
}

// NewStageError builds a StageError whose message includes the cause.
func NewStageError(stage Stage, recoverable bool, msg string, err error) StageError {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	return StageError{Stage: stage, Recoverable: recoverable, Message: msg, Err: err}
}

func (e StageError) Error() string {
	kind := "fatal"
	if e.Recoverable {
		kind = "recoverable"
	}
	return fmt.Sprintf("%s stage (%s): %s", e.Stage, kind, e.Message)
}

func (e StageError) Unwrap() error {
	return e.Err
}

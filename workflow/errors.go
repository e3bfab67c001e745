package workflow

import "errors"

var (
	// ErrLLMRequired is returned when an engine or stage is created without an LLM.
	ErrLLMRequired = errors.New("LLM required")

	// ErrRetrieverRequired is returned when no semantic retriever is provided.
	ErrRetrieverRequired = errors.New("semantic retriever required")

	// ErrEmptyQuery is returned by Run for blank questions.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidConfig wraps workflow configuration problems.
	ErrInvalidConfig = errors.New("invalid workflow config")

	// ErrInvalidTransition indicates a phase change outside the transition table.
	ErrInvalidTransition = errors.New("invalid phase transition")

	// ErrStateViolation indicates a stage result written twice or out of order.
	ErrStateViolation = errors.New("query state violation")

	// ErrNoEvidence is recorded when neither backend returned anything.
	ErrNoEvidence = errors.New("no evidence found")

	// ErrEmptyAnswer is recorded when the LLM returned a blank answer.
	ErrEmptyAnswer = errors.New("empty answer")
)

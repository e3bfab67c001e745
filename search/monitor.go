package search

import "github.com/poiesic/kinfolk/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(dimensions int)
	AfterSemanticSearch(ids []core.ID)
	VerbatimHit(passage *core.Passage)
	Finish(results []core.ScoredPassage)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                  {}
func (n *noopMonitor) AfterEmbedding(_ int)            {}
func (n *noopMonitor) AfterSemanticSearch(_ []core.ID) {}
func (n *noopMonitor) VerbatimHit(_ *core.Passage)     {}
func (n *noopMonitor) Finish(_ []core.ScoredPassage)   {}

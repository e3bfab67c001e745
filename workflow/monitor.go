package workflow

import (
	"time"

	"github.com/poiesic/kinfolk/core"
)

// Monitor provides hooks to observe queries moving through the pipeline.
type Monitor interface {
	PhaseCompleted(query string, from, to Phase, elapsed time.Duration)
	StageFailed(query string, err core.StageError)
	Finished(resp *Response)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) PhaseCompleted(_ string, _, _ Phase, _ time.Duration) {}
func (n *noopMonitor) StageFailed(_ string, _ core.StageError)              {}
func (n *noopMonitor) Finished(_ *Response)                                 {}

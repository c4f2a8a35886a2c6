package valueobject

import "fmt"

// JobStage represents the current pipeline phase of an ingestion job. Stage
// transitions are strictly forward; no stage is revisited within a single
// execution attempt.
type JobStage string

// Job stage constants, in pipeline order.
const (
	JobStageDownloading JobStage = "downloading"
	JobStageParsing     JobStage = "parsing"
	JobStageChunking    JobStage = "chunking"
	JobStageEmbedding   JobStage = "embedding"
	JobStageDone        JobStage = "done"
	JobStageFailed      JobStage = "failed"
	JobStageCancelled   JobStage = "cancelled"
)

// stageOrder maps each non-terminal stage to its position in the pipeline.
var stageOrder = map[JobStage]int{
	JobStageDownloading: 0,
	JobStageParsing:     1,
	JobStageChunking:    2,
	JobStageEmbedding:   3,
}

var validJobStages = map[JobStage]bool{
	JobStageDownloading: true,
	JobStageParsing:     true,
	JobStageChunking:    true,
	JobStageEmbedding:   true,
	JobStageDone:        true,
	JobStageFailed:      true,
	JobStageCancelled:   true,
}

// NewJobStage creates a new JobStage with validation.
func NewJobStage(stage string) (JobStage, error) {
	s := JobStage(stage)
	if !validJobStages[s] {
		return "", fmt.Errorf("invalid job stage: %s", stage)
	}
	return s, nil
}

// String returns the string representation of the stage.
func (s JobStage) String() string {
	return string(s)
}

// IsTerminal returns true if this stage represents a final state.
func (s JobStage) IsTerminal() bool {
	return s == JobStageDone || s == JobStageFailed || s == JobStageCancelled
}

// CanTransitionTo returns true when target is a later pipeline stage or a
// terminal stage. Backward transitions are never allowed.
func (s JobStage) CanTransitionTo(target JobStage) bool {
	if s.IsTerminal() {
		return false
	}
	if target.IsTerminal() {
		return true
	}
	from, ok := stageOrder[s]
	if !ok {
		return false
	}
	to, ok := stageOrder[target]
	if !ok {
		return false
	}
	return to > from
}

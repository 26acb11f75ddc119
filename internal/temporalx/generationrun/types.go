package generationrun

const (
	WorkflowName = "curriculum_generation"
	ActivityWalk = "generation_walk"
)

// WalkResult is the row state the activity observed after the walk.
type WalkResult struct {
	RunID        string `json:"run_id"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	CurrentStage string `json:"current_stage,omitempty"`
	// Claimed is false when another executor already owned the run.
	Claimed bool `json:"claimed"`
}

// WorkflowID is the deterministic workflow id for a run, so a run can only
// be dispatched once.
func WorkflowID(runID string) string { return "generation-run-" + runID }

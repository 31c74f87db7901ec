package status

import "time"

// RunPhase represents the current phase of a discovery run
type RunPhase string

const (
	// RunPhaseRunning means discovery is currently in progress
	RunPhaseRunning RunPhase = "Running"

	// RunPhaseComplete means the run wrote its catalog
	RunPhaseComplete RunPhase = "Complete"

	// RunPhaseFailed means the run stopped before writing a catalog
	RunPhaseFailed RunPhase = "Failed"
)

// RunStatus represents the state of the last discovery run against a cache directory
type RunStatus struct {
	// RunID identifies the run in logs
	RunID string `json:"runId"`

	// Phase represents the current run phase
	Phase RunPhase `json:"phase"`

	// Message provides additional information about the run, such as the fatal error
	Message string `json:"message,omitempty"`

	// StartedAt is when the run began
	StartedAt *time.Time `json:"startedAt,omitempty"`

	// FinishedAt is when the run completed or failed
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	// RegistryRev is the registry commit the candidates were read from
	RegistryRev string `json:"registryRev,omitempty"`

	// Candidates is the number of repositories discovery was attempted for
	Candidates int `json:"candidates,omitempty"`

	// Sources is the number of sources in the written catalog
	Sources int `json:"sources,omitempty"`

	// Failures is the number of repositories without a source
	Failures int `json:"failures,omitempty"`

	// Outcomes counts repositories by discovery outcome
	Outcomes map[string]int `json:"outcomes,omitempty"`

	// Cooldowns is the number of rate limit cooldowns taken
	Cooldowns int64 `json:"cooldowns,omitempty"`

	// Output is where the catalog was written, empty for stdout
	Output string `json:"output,omitempty"`
}

// Duration returns how long a finished run took, or zero
func (s *RunStatus) Duration() time.Duration {
	if s == nil || s.StartedAt == nil || s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(*s.StartedAt)
}

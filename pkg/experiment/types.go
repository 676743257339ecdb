// Package experiment defines the core records of the service and the SQLite
// store that persists them. An Experiment owns Variants; a Variant owns at
// most one Agent (the simulated-user run) and at most one CodeAgent (the
// autonomous implementation run).
package experiment

import "time"

// Status is the lifecycle state shared by experiments, agents, and code agents.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Transitions only move forward: pending to running, running to a
// terminal state, and pending straight to failed when setup never starts.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusFailed
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// VariantKind distinguishes the unmodified baseline from a deployment that
// carries an implemented suggestion.
type VariantKind string

const (
	VariantControl    VariantKind = "control"
	VariantExperiment VariantKind = "experiment"
)

// Experiment is the top-level record created on user submission.
type Experiment struct {
	ID                 string    `json:"id"`
	RepoURL            string    `json:"repoUrl"`
	Goal               string    `json:"goal"`
	Status             Status    `json:"status"`
	VariantSuggestions []string  `json:"variantSuggestions"`
	ErrorMessage       string    `json:"errorMessage,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Analysis is the structured result of analyzing a browsing session against
// the experiment goal.
type Analysis struct {
	Success  bool     `json:"success"`
	Summary  string   `json:"summary"`
	Insights []string `json:"insights"`
	Issues   []string `json:"issues"`
}

// Variant is one deployment of the target repository. Suggestion is nil for
// the control variant and always set for experimental ones.
type Variant struct {
	ID           string      `json:"id"`
	ExperimentID string      `json:"experimentId"`
	SandboxID    string      `json:"sandboxId"`
	PublicURL    string      `json:"publicUrl"`
	Kind         VariantKind `json:"type"`
	Suggestion   *string     `json:"suggestion"`
	Analysis     *Analysis   `json:"analysis"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// AgentResult is the flattened analysis attached to a simulated-user run.
// Insights and issues are newline-joined so the record stays a single row.
type AgentResult struct {
	Success  bool   `json:"success"`
	Summary  string `json:"summary"`
	Insights string `json:"insights"`
	Issues   string `json:"issues"`
}

// Agent tracks one simulated-user test run against a variant.
type Agent struct {
	ID             string       `json:"id"`
	ExperimentID   string       `json:"experimentId"`
	VariantID      string       `json:"variantId"`
	BrowserTaskID  string       `json:"browserTaskId"`
	BrowserLiveURL string       `json:"browserLiveUrl,omitempty"`
	TaskPrompt     string       `json:"taskPrompt"`
	Status         Status       `json:"status"`
	Result         *AgentResult `json:"result"`
	RawLogs        string       `json:"rawLogs,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// CodeChange describes one modified file as reported by the coding agent.
type CodeChange struct {
	File    string `json:"file"`
	Changes string `json:"changes"`
}

// CodeAgent tracks one autonomous implementation run. Only the remote
// runner's callback mutates it after creation.
type CodeAgent struct {
	ID                    string       `json:"id"`
	ExperimentID          string       `json:"experimentId"`
	VariantID             string       `json:"variantId"`
	SessionID             string       `json:"sessionId,omitempty"`
	SandboxID             string       `json:"sandboxId"`
	Suggestion            string       `json:"suggestion"`
	ImplementationPrompt  string       `json:"implementationPrompt"`
	Status                Status       `json:"status"`
	ImplementationSummary string       `json:"implementationSummary,omitempty"`
	FilesModified         []string     `json:"filesModified"`
	CodeChanges           []CodeChange `json:"codeChanges"`
	Logs                  string       `json:"logs,omitempty"`
	ErrorMessage          string       `json:"errorMessage,omitempty"`
	StartedAt             *time.Time   `json:"startedAt"`
	CompletedAt           *time.Time   `json:"completedAt"`
	CreatedAt             time.Time    `json:"createdAt"`
	UpdatedAt             time.Time    `json:"updatedAt"`
}

// CodeAgentUpdate is a partial mutation applied through the runner callback.
// Nil fields are left untouched so the runner can report progress in pieces.
type CodeAgentUpdate struct {
	Status                *Status      `json:"status"`
	StartedAt             *time.Time   `json:"startedAt"`
	CompletedAt           *time.Time   `json:"completedAt"`
	ImplementationSummary *string      `json:"implementationSummary"`
	FilesModified         []string     `json:"filesModified"`
	CodeChanges           []CodeChange `json:"codeChanges"`
	Logs                  *string      `json:"logs"`
	ErrorMessage          *string      `json:"errorMessage"`
}

// Empty reports whether the update would touch nothing.
func (u CodeAgentUpdate) Empty() bool {
	return u.Status == nil && u.StartedAt == nil && u.CompletedAt == nil &&
		u.ImplementationSummary == nil && u.FilesModified == nil &&
		u.CodeChanges == nil && u.Logs == nil && u.ErrorMessage == nil
}

package experiment

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	apperrors "github.com/odvcencio/uplift/pkg/errors"
	"github.com/odvcencio/uplift/pkg/identifier"
)

// Store persists experiments and their child records.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateExperiment inserts a new pending experiment.
func (s *Store) CreateExperiment(repoURL, goal string) (*Experiment, error) {
	repoURL = strings.TrimSpace(repoURL)
	goal = strings.TrimSpace(goal)
	if repoURL == "" || goal == "" {
		return nil, apperrors.New(apperrors.ErrCodeStorageWrite, "repo url and goal are required")
	}

	now := time.Now().UTC()
	exp := &Experiment{
		ID:        identifier.New(identifier.KindExperiment),
		RepoURL:   repoURL,
		Goal:      goal,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(`
		INSERT INTO experiments (id, repo_url, goal, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.RepoURL, exp.Goal, string(exp.Status), exp.CreatedAt, exp.UpdatedAt)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to insert experiment")
	}
	return exp, nil
}

// GetExperiment fetches one experiment by id.
func (s *Store) GetExperiment(id string) (*Experiment, error) {
	row := s.db.QueryRow(`
		SELECT id, repo_url, goal, status, variant_suggestions, error_message, created_at, updated_at
		FROM experiments WHERE id = ?`, id)
	return scanExperiment(row)
}

// ListExperiments returns the most recent experiments, newest first.
func (s *Store) ListExperiments(limit int) ([]*Experiment, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, repo_url, goal, status, variant_suggestions, error_message, created_at, updated_at
		FROM experiments ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to list experiments")
	}
	defer rows.Close()

	var out []*Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to list experiments")
	}
	return out, nil
}

// SetExperimentStatus advances an experiment's status. Transitions only move
// forward; terminal states are immutable.
func (s *Store) SetExperimentStatus(id string, next Status) error {
	return s.transition("experiments", id, next, nil)
}

// FailExperiment marks an experiment failed and records the reason.
func (s *Store) FailExperiment(id, reason string) error {
	return s.transition("experiments", id, StatusFailed, map[string]any{
		"error_message": nullIfEmpty(reason),
	})
}

// SetVariantSuggestions replaces the experiment's suggestion list.
func (s *Store) SetVariantSuggestions(id string, suggestions []string) error {
	encoded, err := jsonColumn(suggestions)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to encode suggestions")
	}
	res, err := s.db.Exec(`
		UPDATE experiments SET variant_suggestions = ?, updated_at = ? WHERE id = ?`,
		encoded, time.Now().UTC(), id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to update suggestions")
	}
	return requireRow(res, id)
}

// CreateVariant inserts a variant pointing at a provisioned sandbox. A
// control variant must not carry a suggestion and an experimental one must.
func (s *Store) CreateVariant(experimentID, sandboxID, publicURL string, kind VariantKind, suggestion *string) (*Variant, error) {
	switch kind {
	case VariantControl:
		if suggestion != nil {
			return nil, apperrors.New(apperrors.ErrCodeStorageWrite, "control variant cannot carry a suggestion")
		}
	case VariantExperiment:
		if suggestion == nil || strings.TrimSpace(*suggestion) == "" {
			return nil, apperrors.New(apperrors.ErrCodeStorageWrite, "experimental variant requires a suggestion")
		}
	default:
		return nil, apperrors.New(apperrors.ErrCodeStorageWrite, fmt.Sprintf("unknown variant kind %q", kind))
	}

	now := time.Now().UTC()
	v := &Variant{
		ID:           identifier.New(identifier.KindVariant),
		ExperimentID: experimentID,
		SandboxID:    sandboxID,
		PublicURL:    publicURL,
		Kind:         kind,
		Suggestion:   suggestion,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var suggestionCol any
	if suggestion != nil {
		suggestionCol = *suggestion
	}
	_, err := s.db.Exec(`
		INSERT INTO variants (id, experiment_id, sandbox_id, public_url, kind, suggestion, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.ExperimentID, v.SandboxID, v.PublicURL, string(v.Kind), suggestionCol, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to insert variant")
	}
	return v, nil
}

// GetVariant fetches one variant by id.
func (s *Store) GetVariant(id string) (*Variant, error) {
	row := s.db.QueryRow(`
		SELECT id, experiment_id, sandbox_id, public_url, kind, suggestion, analysis, created_at, updated_at
		FROM variants WHERE id = ?`, id)
	return scanVariant(row)
}

// ListVariantsByExperiment returns all variants of an experiment, control first.
func (s *Store) ListVariantsByExperiment(experimentID string) ([]*Variant, error) {
	rows, err := s.db.Query(`
		SELECT id, experiment_id, sandbox_id, public_url, kind, suggestion, analysis, created_at, updated_at
		FROM variants WHERE experiment_id = ? ORDER BY created_at ASC`, experimentID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to list variants")
	}
	defer rows.Close()

	var out []*Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to list variants")
	}
	return out, nil
}

// SetVariantAnalysis attaches the session analysis to a variant.
func (s *Store) SetVariantAnalysis(id string, analysis *Analysis) error {
	encoded, err := jsonColumn(analysis)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to encode analysis")
	}
	res, err := s.db.Exec(`
		UPDATE variants SET analysis = ?, updated_at = ? WHERE id = ?`,
		encoded, time.Now().UTC(), id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to update variant analysis")
	}
	return requireRow(res, id)
}

// CreateAgent inserts a pending simulated-user run for a variant. The browser
// task handle is attached later, once the external task exists.
func (s *Store) CreateAgent(experimentID, variantID, taskPrompt string) (*Agent, error) {
	now := time.Now().UTC()
	a := &Agent{
		ID:           identifier.New(identifier.KindAgent),
		ExperimentID: experimentID,
		VariantID:    variantID,
		TaskPrompt:   taskPrompt,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.db.Exec(`
		INSERT INTO agents (id, experiment_id, variant_id, task_prompt, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ExperimentID, a.VariantID, a.TaskPrompt, string(a.Status), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to insert agent")
	}
	return a, nil
}

// StartAgent records the external task handle and moves the agent to running.
func (s *Store) StartAgent(id, browserTaskID, liveURL string) error {
	return s.transition("agents", id, StatusRunning, map[string]any{
		"browser_task_id":  browserTaskID,
		"browser_live_url": nullIfEmpty(liveURL),
	})
}

// FinishAgent records the terminal status, the flattened analysis, and the
// raw session logs in one write.
func (s *Store) FinishAgent(id string, status Status, result *AgentResult, rawLogs string) error {
	if !status.IsTerminal() {
		return apperrors.New(apperrors.ErrCodeStorageWrite, fmt.Sprintf("agent finish status must be terminal, got %q", status))
	}
	encoded, err := jsonColumn(result)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to encode agent result")
	}
	return s.transition("agents", id, status, map[string]any{
		"result":   encoded,
		"raw_logs": nullIfEmpty(rawLogs),
	})
}

// GetAgent fetches one agent by id.
func (s *Store) GetAgent(id string) (*Agent, error) {
	row := s.db.QueryRow(`
		SELECT id, experiment_id, variant_id, browser_task_id, browser_live_url, task_prompt, status, result, raw_logs, created_at, updated_at
		FROM agents WHERE id = ?`, id)
	return scanAgent(row)
}

// ListAgentsByVariant returns all agents attached to a variant.
func (s *Store) ListAgentsByVariant(variantID string) ([]*Agent, error) {
	return s.listAgents("variant_id", variantID)
}

// ListAgentsByExperiment returns all agents across an experiment's variants.
func (s *Store) ListAgentsByExperiment(experimentID string) ([]*Agent, error) {
	return s.listAgents("experiment_id", experimentID)
}

func (s *Store) listAgents(column, value string) ([]*Agent, error) {
	rows, err := s.db.Query(`
		SELECT id, experiment_id, variant_id, browser_task_id, browser_live_url, task_prompt, status, result, raw_logs, created_at, updated_at
		FROM agents WHERE `+column+` = ? ORDER BY created_at ASC`, value)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to list agents")
	}
	defer rows.Close()

	var out []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to list agents")
	}
	return out, nil
}

// CreateCodeAgent inserts a pending implementation run. All later mutation
// comes through ApplyCodeAgentUpdate via the runner callback.
func (s *Store) CreateCodeAgent(experimentID, variantID, sandboxID, suggestion, implementationPrompt string) (*CodeAgent, error) {
	now := time.Now().UTC()
	ca := &CodeAgent{
		ID:                   identifier.New(identifier.KindCodeAgent),
		ExperimentID:         experimentID,
		VariantID:            variantID,
		SandboxID:            sandboxID,
		Suggestion:           suggestion,
		ImplementationPrompt: implementationPrompt,
		Status:               StatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	_, err := s.db.Exec(`
		INSERT INTO code_agents (id, experiment_id, variant_id, sandbox_id, suggestion, implementation_prompt, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ca.ID, ca.ExperimentID, ca.VariantID, ca.SandboxID, ca.Suggestion, ca.ImplementationPrompt,
		string(ca.Status), ca.CreatedAt, ca.UpdatedAt)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to insert code agent")
	}
	return ca, nil
}

// SetCodeAgentSession records the opaque session handle of the spawned runner.
func (s *Store) SetCodeAgentSession(id, sessionID string) error {
	res, err := s.db.Exec(`
		UPDATE code_agents SET session_id = ?, updated_at = ? WHERE id = ?`,
		nullIfEmpty(sessionID), time.Now().UTC(), id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to set code agent session")
	}
	return requireRow(res, id)
}

// ApplyCodeAgentUpdate applies a partial callback payload. Absent fields are
// left untouched. A status change goes through the usual transition guard.
func (s *Store) ApplyCodeAgentUpdate(id string, update CodeAgentUpdate) (*CodeAgent, error) {
	if update.Empty() {
		return s.GetCodeAgent(id)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to start code agent tx")
	}
	defer tx.Rollback()

	if update.Status != nil {
		var current string
		err := tx.QueryRow(`SELECT status FROM code_agents WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("code agent %s not found", id))
		}
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to read code agent status")
		}
		if Status(current) != *update.Status && !Status(current).CanTransition(*update.Status) {
			return nil, apperrors.New(apperrors.ErrCodeStorageWrite,
				fmt.Sprintf("illegal status transition %s -> %s for %s", current, *update.Status, id))
		}
	}

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	addSet := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if update.Status != nil {
		addSet("status", string(*update.Status))
	}
	if update.StartedAt != nil {
		addSet("started_at", update.StartedAt.UTC())
	}
	if update.CompletedAt != nil {
		addSet("completed_at", update.CompletedAt.UTC())
	}
	if update.ImplementationSummary != nil {
		addSet("implementation_summary", *update.ImplementationSummary)
	}
	if update.FilesModified != nil {
		encoded, err := jsonColumn(update.FilesModified)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to encode files modified")
		}
		addSet("files_modified", encoded)
	}
	if update.CodeChanges != nil {
		encoded, err := jsonColumn(update.CodeChanges)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to encode code changes")
		}
		addSet("code_changes", encoded)
	}
	if update.Logs != nil {
		addSet("logs", *update.Logs)
	}
	if update.ErrorMessage != nil {
		addSet("error_message", *update.ErrorMessage)
	}

	args = append(args, id)
	res, err := tx.Exec(`UPDATE code_agents SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to update code agent")
	}
	if err := requireRow(res, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to commit code agent update")
	}

	return s.GetCodeAgent(id)
}

// GetCodeAgent fetches one code agent by id.
func (s *Store) GetCodeAgent(id string) (*CodeAgent, error) {
	row := s.db.QueryRow(`
		SELECT id, experiment_id, variant_id, session_id, sandbox_id, suggestion, implementation_prompt, status,
		       implementation_summary, files_modified, code_changes, logs, error_message,
		       started_at, completed_at, created_at, updated_at
		FROM code_agents WHERE id = ?`, id)
	return scanCodeAgent(row)
}

// ListCodeAgentsByExperiment returns all implementation runs of an experiment.
func (s *Store) ListCodeAgentsByExperiment(experimentID string) ([]*CodeAgent, error) {
	return s.listCodeAgents("experiment_id", experimentID)
}

// ListCodeAgentsByVariant returns the implementation runs attached to a variant.
func (s *Store) ListCodeAgentsByVariant(variantID string) ([]*CodeAgent, error) {
	return s.listCodeAgents("variant_id", variantID)
}

func (s *Store) listCodeAgents(column, value string) ([]*CodeAgent, error) {
	rows, err := s.db.Query(`
		SELECT id, experiment_id, variant_id, session_id, sandbox_id, suggestion, implementation_prompt, status,
		       implementation_summary, files_modified, code_changes, logs, error_message,
		       started_at, completed_at, created_at, updated_at
		FROM code_agents WHERE `+column+` = ? ORDER BY created_at ASC`, value)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to list code agents")
	}
	defer rows.Close()

	var out []*CodeAgent
	for rows.Next() {
		ca, err := scanCodeAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ca)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to list code agents")
	}
	return out, nil
}

// transition performs a guarded status move on any entity table, optionally
// setting extra columns in the same write.
func (s *Store) transition(table, id string, next Status, extra map[string]any) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to start transition tx")
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRow(`SELECT status FROM `+table+` WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("%s record %s not found", table, id))
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to read current status")
	}
	if Status(current) != next && !Status(current).CanTransition(next) {
		return apperrors.New(apperrors.ErrCodeStorageWrite,
			fmt.Sprintf("illegal status transition %s -> %s for %s", current, next, id))
	}

	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{string(next), time.Now().UTC()}
	for column, value := range extra {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	args = append(args, id)

	if _, err := tx.Exec(`UPDATE `+table+` SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to apply transition")
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (*Experiment, error) {
	var (
		exp          Experiment
		status       string
		suggestions  sql.NullString
		errorMessage sql.NullString
	)
	err := row.Scan(&exp.ID, &exp.RepoURL, &exp.Goal, &status, &suggestions, &errorMessage,
		&exp.CreatedAt, &exp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "experiment not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to scan experiment")
	}
	exp.Status = Status(status)
	exp.ErrorMessage = errorMessage.String
	if err := decodeColumn(suggestions, &exp.VariantSuggestions); err != nil {
		return nil, err
	}
	return &exp, nil
}

func scanVariant(row rowScanner) (*Variant, error) {
	var (
		v          Variant
		kind       string
		suggestion sql.NullString
		analysis   sql.NullString
	)
	err := row.Scan(&v.ID, &v.ExperimentID, &v.SandboxID, &v.PublicURL, &kind, &suggestion, &analysis,
		&v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "variant not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to scan variant")
	}
	v.Kind = VariantKind(kind)
	if suggestion.Valid {
		text := suggestion.String
		v.Suggestion = &text
	}
	if analysis.Valid {
		v.Analysis = &Analysis{}
		if err := decodeColumn(analysis, v.Analysis); err != nil {
			return nil, err
		}
	}
	return &v, nil
}

func scanAgent(row rowScanner) (*Agent, error) {
	var (
		a       Agent
		status  string
		liveURL sql.NullString
		result  sql.NullString
		rawLogs sql.NullString
	)
	err := row.Scan(&a.ID, &a.ExperimentID, &a.VariantID, &a.BrowserTaskID, &liveURL, &a.TaskPrompt,
		&status, &result, &rawLogs, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "agent not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to scan agent")
	}
	a.Status = Status(status)
	a.BrowserLiveURL = liveURL.String
	a.RawLogs = rawLogs.String
	if result.Valid {
		a.Result = &AgentResult{}
		if err := decodeColumn(result, a.Result); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

func scanCodeAgent(row rowScanner) (*CodeAgent, error) {
	var (
		ca            CodeAgent
		status        string
		sessionID     sql.NullString
		summary       sql.NullString
		filesModified sql.NullString
		codeChanges   sql.NullString
		logs          sql.NullString
		errorMessage  sql.NullString
		startedAt     sql.NullTime
		completedAt   sql.NullTime
	)
	err := row.Scan(&ca.ID, &ca.ExperimentID, &ca.VariantID, &sessionID, &ca.SandboxID, &ca.Suggestion,
		&ca.ImplementationPrompt, &status, &summary, &filesModified, &codeChanges, &logs, &errorMessage,
		&startedAt, &completedAt, &ca.CreatedAt, &ca.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "code agent not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to scan code agent")
	}
	ca.Status = Status(status)
	ca.SessionID = sessionID.String
	ca.ImplementationSummary = summary.String
	ca.Logs = logs.String
	ca.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		t := startedAt.Time
		ca.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		ca.CompletedAt = &t
	}
	if err := decodeColumn(filesModified, &ca.FilesModified); err != nil {
		return nil, err
	}
	if err := decodeColumn(codeChanges, &ca.CodeChanges); err != nil {
		return nil, err
	}
	return &ca, nil
}

func decodeColumn(column sql.NullString, target any) error {
	if !column.Valid || strings.TrimSpace(column.String) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(column.String), target); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "failed to decode stored json")
	}
	return nil
}

func jsonColumn(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch rv := reflect.ValueOf(value); rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func requireRow(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "failed to check affected rows")
	}
	if affected == 0 {
		return apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("record %s not found", id))
	}
	return nil
}

// Package codeagent spawns and tracks the autonomous coding agent that
// implements one improvement suggestion inside a variant sandbox. The agent
// runs as an embedded Node script under process supervision and reports
// progress by calling back over HTTP; nothing here reads its output directly.
package codeagent

import "fmt"

// BuildImplementationPrompt produces the instruction handed to the coding
// agent. Deterministic: the same goal and suggestion always yield the same
// prompt, so a re-run of the step is idempotent.
func BuildImplementationPrompt(goal, suggestion, workDir string) string {
	return fmt.Sprintf(`You are implementing an improvement for a web application.

**Goal:** %s
**Improvement:** %s

**Fast Implementation Steps:**
1. Quickly scan the %s directory structure
2. Identify the main file that needs changes
3. Implement ONLY the specific change requested - no refactoring
4. Save files and briefly verify the change worked

**Rules:**
- Make the MINIMAL change needed
- Don't install new packages unless absolutely required
- Don't run tests or extensive checks
- Stay focused on the requested improvement

Implement this improvement quickly and report back with a summary.`, goal, suggestion, workDir)
}

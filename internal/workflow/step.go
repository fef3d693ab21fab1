// Package workflow holds the resumable import step machine: the
// per-turn snapshot, the format fallback controller and the
// challenge-resumable statement request.
package workflow

// Step identifies the current position in the import workflow. The
// caller posts the step it is on; responses name the next step.
type Step string

const (
	StepSetup         Step = "setup"
	StepGetImportData Step = "get-import-data"
	StepRunImport     Step = "run-import"
	StepDone          Step = "done"
)

// Valid reports whether s is a known step identifier.
func (s Step) Valid() bool {
	switch s {
	case StepSetup, StepGetImportData, StepRunImport, StepDone:
		return true
	}
	return false
}

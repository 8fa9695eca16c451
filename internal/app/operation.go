package app

import (
	"strings"

	"ingester-go/internal/database"
)

// Operation tracks the CLI command being run. Operations start in memory
// with ID=0; commands that write to the vault persist them as a ledger run.
type Operation struct {
	ID         int64
	Command    string
	Parameters string
	Status     string
}

// NewOperation creates an in-memory operation. params are joined with spaces.
func NewOperation(command string, params ...string) *Operation {
	return &Operation{
		Command:    command,
		Parameters: strings.Join(params, " "),
		Status:     database.RunStatusSuccess,
	}
}

// Persisted returns true if this operation has been saved to the ledger.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed when err is non-nil and returns err.
func (op *Operation) Fail(err error) error {
	if err != nil {
		op.Status = database.RunStatusError
	}
	return err
}

package app

// RunRecord tracks a CLI invocation in memory before it is persisted to the
// run database. Records are created with ID=0; persisting assigns the
// auto-increment ID.
type RunRecord struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewRunRecord creates a new in-memory run record.
func NewRunRecord(operation, parameters string) *RunRecord {
	return &RunRecord{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this record has been saved to the database.
func (r *RunRecord) Persisted() bool {
	return r.ID != 0
}

package gitre

// Reporter receives user-facing progress from pipeline components. It is
// passed explicitly so components stay free of process-wide console state
// and can be exercised silently in tests.
type Reporter interface {
	// Step announces an in-progress action.
	Step(msg string)
	// Warn surfaces a non-fatal problem the user should see.
	Warn(msg string)
	// Success announces a completed action.
	Success(msg string)
}

// NopReporter is a Reporter that discards all output. Use in tests.
type NopReporter struct{}

func NewNopReporter() *NopReporter { return &NopReporter{} }

func (NopReporter) Step(string)    {}
func (NopReporter) Warn(string)    {}
func (NopReporter) Success(string) {}

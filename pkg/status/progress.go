package status

// Progress is returned as a struct so that wrappers can summarize a run
// without parsing log output.
type Progress struct {
	CurrentState State  // current state, i.e. ConvertTables
	Summary      string // text based representation, i.e. "3/12 tables convertTables"
}

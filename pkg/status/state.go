package status

import (
	"sync/atomic"
)

//nolint:recvcheck // String() uses value receiver (called on State values), Get/Set use pointer receivers (atomic ops)
type State int32

const (
	Initial State = iota
	AlterDatabase
	ConvertTables
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Initial:
		return "initial"
	case AlterDatabase:
		return "alterDatabase"
	case ConvertTables:
		return "convertTables"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Done returns true for the terminal states.
func (s State) Done() bool {
	return s >= Complete
}

func (s *State) Get() State {
	return State(atomic.LoadInt32((*int32)(s)))
}

func (s *State) Set(newState State) {
	atomic.StoreInt32((*int32)(s), int32(newState))
}

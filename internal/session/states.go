package session

import "github.com/lumen-access/waypoint/internal/fsm"

// SearchState is the lifecycle of the two search features. Item search
// skips Listening because its query arrives as a label; text search
// acquires its query from speech first.
type SearchState int

const (
	SearchIdle SearchState = iota
	SearchListening
	SearchActive
)

// String returns the state name used in logs.
func (s SearchState) String() string {
	switch s {
	case SearchListening:
		return "listening"
	case SearchActive:
		return "searching"
	default:
		return "idle"
	}
}

// searchTable is the transition table for both search features. Idle is
// reachable from every state so stop always succeeds.
func searchTable() map[SearchState][]SearchState {
	return map[SearchState][]SearchState{
		SearchIdle:      {SearchListening, SearchActive},
		SearchListening: {SearchActive, SearchIdle},
		SearchActive:    {SearchIdle},
	}
}

func newSearchOrchestrator() *fsm.Orchestrator[SearchState] {
	return fsm.NewOrchestrator(SearchIdle, fsm.TableValidator(searchTable()))
}

// ReadState is the lifecycle of the text-reading feature.
type ReadState int

const (
	ReadIdle ReadState = iota
	ReadCapturing
	ReadRecognizing
	ReadProcessed
)

// String returns the state name used in logs.
func (s ReadState) String() string {
	switch s {
	case ReadCapturing:
		return "capturing"
	case ReadRecognizing:
		return "recognizing"
	case ReadProcessed:
		return "processed"
	default:
		return "idle"
	}
}

// readTable allows retaking a photo from Processed and aborting to Idle
// from everywhere.
func readTable() map[ReadState][]ReadState {
	return map[ReadState][]ReadState{
		ReadIdle:        {ReadCapturing},
		ReadCapturing:   {ReadRecognizing, ReadIdle},
		ReadRecognizing: {ReadProcessed, ReadIdle},
		ReadProcessed:   {ReadCapturing, ReadIdle},
	}
}

func newReadOrchestrator() *fsm.Orchestrator[ReadState] {
	return fsm.NewOrchestrator(ReadIdle, fsm.TableValidator(readTable()))
}

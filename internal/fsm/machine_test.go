package fsm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type phase string

const (
	phaseIdle    phase = "idle"
	phaseCapture phase = "capturing"
	phaseProcess phase = "processing"
	phaseDone    phase = "processed"
)

func testTable() map[phase][]phase {
	return map[phase][]phase{
		phaseIdle:    {phaseCapture},
		phaseCapture: {phaseProcess, phaseIdle},
		phaseProcess: {phaseDone, phaseIdle},
		phaseDone:    {phaseIdle},
	}
}

func TestMachine_TransitionTable(t *testing.T) {
	t.Parallel()

	table := testTable()
	allStates := []phase{phaseIdle, phaseCapture, phaseProcess, phaseDone}

	for _, from := range allStates {
		for _, to := range allStates {
			m := NewMachine(from, TableValidator(table))

			allowed := false
			for _, a := range table[from] {
				if a == to {
					allowed = true
				}
			}

			got := m.Transition(to)
			assert.Equal(t, allowed, got, "%s -> %s", from, to)
			if allowed {
				assert.Equal(t, to, m.Current())
			} else {
				assert.Equal(t, from, m.Current(), "rejected transition must not mutate")
			}
		}
	}
}

func TestMachine_NilValidatorAllowsAll(t *testing.T) {
	t.Parallel()

	m := NewMachine(phaseIdle, nil)
	assert.True(t, m.Transition(phaseDone))
	assert.Equal(t, phaseDone, m.Current())
}

func TestMachine_ConcurrentTransitions(t *testing.T) {
	t.Parallel()

	// Only idle->capturing is legal, so of many racing attempts exactly
	// one must win.
	m := NewMachine(phaseIdle, TableValidator(testTable()))

	var wg sync.WaitGroup
	wins := make(chan bool, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- m.Transition(phaseCapture)
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	require.Equal(t, 1, won)
	assert.Equal(t, phaseCapture, m.Current())
}

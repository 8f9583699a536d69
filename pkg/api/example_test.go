package api_test

import (
	"errors"
	"fmt"

	"github.com/petrijr/studyflow/pkg/api"
)

// ExampleCanTransition lists the states a READY session may move to.
func ExampleCanTransition() {
	for _, to := range []api.State{api.StateIdle, api.StatePlanning, api.StateReady, api.StateQuizzing} {
		fmt.Printf("READY -> %s: %v\n", to, api.CanTransition(api.StateReady, to))
	}

	// Output:
	// READY -> IDLE: true
	// READY -> PLANNING: true
	// READY -> READY: true
	// READY -> QUIZZING: true
}

// ExampleStateConflictError shows how callers classify orchestrator errors.
func ExampleStateConflictError() {
	var err error = &api.StateConflictError{
		Op:      "start_quiz",
		Allowed: []api.State{api.StateReady},
		Actual:  api.StatePlanning,
	}

	var conflict *api.StateConflictError
	if errors.Is(err, api.ErrStateConflict) && errors.As(err, &conflict) {
		fmt.Println("busy:", conflict.Actual.Busy())
		fmt.Println(err)
	}

	// Output:
	// busy: true
	// start_quiz: state conflict: need one of [READY], current PLANNING
}

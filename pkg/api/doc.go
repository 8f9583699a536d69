// Package api contains the core types shared by the studyflow session
// orchestrator: session states, the records stored per user, the error
// taxonomy and the observer hooks.
//
// Most users interact with the higher-level studyflow package, which
// re-exports selected types and constructors from this package. The api
// package is intended for custom integrations such as alternative endpoint
// layers, observers or fake orchestrators in tests.
//
// # States
//
// A session is always in exactly one State:
//
//	IDLE -> PLANNING -> READY -> QUIZZING -> READY
//	           \-> IDLE (planning failed)
//
// A missing record reads as IDLE. CanTransition encodes the permitted edges.
//
// # Records
//
// Besides its state, a session owns a SessionContext (topic, level,
// document reference, calendar metadata) and, while quizzing, a
// QuizSession. All three expire independently.
//
// # Errors
//
// Errors returned by the orchestrator match one of the sentinels with
// errors.Is:
//
//   - ErrStateConflict: the operation is not valid in the current state
//   - ErrValidationFailed: missing or invalid input
//   - ErrUpstreamBusiness: a back-end rejected the request
//   - ErrUpstreamTransient: a back-end was unreachable (normally absorbed
//     into a fallback result and only visible to observers)
//   - ErrStoreUnavailable: the session store failed
//   - ErrPersistFailed: the progress recorder failed after the session was
//     already returned to READY
//
// The typed errors (StateConflictError, ValidationError, UpstreamError,
// StoreError, PersistError) carry the details and can be extracted with
// errors.As.
//
// # Observability
//
// Observer receives transition, upstream call, fallback and quiz
// completion events. LoggingObserver, BasicMetrics and CompositeObserver
// cover the common cases.
package api

// Package statemachine provides a small, concurrency-safe finite state machine
// used to model multi-step authentication flows such as 2FA enrollment and the
// post-password login gate.
//
// States and events are plain interfaces; StringState and StringEvent cover the
// common case of named constants. Transitions may carry Guards, which veto a
// transition based on runtime data, and Actions, which run after all guards
// pass and before the state changes. An Action returning an error aborts the
// transition and leaves the machine in its previous state, which lets callers
// treat external side effects (persisting a record, activating a session) as
// part of the transition itself.
//
// # Usage
//
//	const (
//	    PasswordVerified = statemachine.StringState("password_verified")
//	    Pending2FA       = statemachine.StringState("pending_2fa")
//	    Active           = statemachine.StringState("active")
//
//	    Require2FA = statemachine.StringEvent("require_2fa")
//	    SubmitCode = statemachine.StringEvent("submit_code")
//	)
//
//	machine := statemachine.MustNew(PasswordVerified,
//	    statemachine.WithTransition(PasswordVerified, Pending2FA, Require2FA),
//	    statemachine.WithTransition(Pending2FA, Active, SubmitCode,
//	        statemachine.WithGuard(codeIsValid),
//	        statemachine.WithAction(activateSession),
//	    ),
//	    statemachine.WithObserver(func(ctx context.Context, from, to statemachine.State, evt statemachine.Event) {
//	        logger.InfoContext(ctx, "transition", "from", from.Name(), "to", to.Name())
//	    }),
//	)
//
// # Error Handling
//
// Fire distinguishes a missing transition from one vetoed by guards:
//
//	if statemachine.IsNoTransitionAvailableError(err) { /* wrong state */ }
//	if statemachine.IsTransitionRejectedError(err)   { /* guard said no */ }
//
// Errors returned by actions are passed through unchanged.
//
// # Concurrency
//
// SimpleStateMachine serializes Fire, AddTransition and Reset behind a mutex.
// Guards, actions and observers run while that mutex is held and must not call
// back into the same machine.
package statemachine

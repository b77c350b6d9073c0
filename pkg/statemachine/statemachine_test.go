package statemachine_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dmitrymomot/mfakit/pkg/statemachine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	Unauthenticated  = statemachine.StringState("unauthenticated")
	PasswordVerified = statemachine.StringState("password_verified")
	Pending2FA       = statemachine.StringState("pending_2fa")
	Active           = statemachine.StringState("active")

	VerifyPassword = statemachine.StringEvent("verify_password")
	Require2FA     = statemachine.StringEvent("require_2fa")
	Skip2FA        = statemachine.StringEvent("skip_2fa")
	SubmitCode     = statemachine.StringEvent("submit_code")
	Cancel         = statemachine.StringEvent("cancel")
)

func loginMachine(t *testing.T, opts ...statemachine.Option) statemachine.StateMachine {
	t.Helper()
	base := []statemachine.Option{
		statemachine.WithTransitions([]statemachine.TransitionDef{
			{From: Unauthenticated, To: PasswordVerified, Event: VerifyPassword},
			{From: PasswordVerified, To: Pending2FA, Event: Require2FA},
			{From: PasswordVerified, To: Active, Event: Skip2FA},
			{From: Pending2FA, To: Unauthenticated, Event: Cancel},
		}),
	}
	sm, err := statemachine.New(Unauthenticated, append(base, opts...)...)
	require.NoError(t, err)
	return sm
}

func TestFire_BasicTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sm := loginMachine(t)

	assert.Equal(t, Unauthenticated, sm.Current())
	assert.True(t, sm.CanFire(ctx, VerifyPassword, nil))
	assert.False(t, sm.CanFire(ctx, Require2FA, nil))

	require.NoError(t, sm.Fire(ctx, VerifyPassword, nil))
	require.NoError(t, sm.Fire(ctx, Require2FA, nil))
	assert.True(t, sm.Is(Pending2FA))
	assert.False(t, sm.Is(Active))
	assert.False(t, sm.Is(nil))

	require.NoError(t, sm.Fire(ctx, Cancel, nil))
	assert.Equal(t, Unauthenticated, sm.Current())
}

func TestFire_NoTransitionAvailable(t *testing.T) {
	t.Parallel()
	sm := loginMachine(t)

	err := sm.Fire(context.Background(), SubmitCode, nil)
	require.Error(t, err)
	assert.True(t, statemachine.IsNoTransitionAvailableError(err))
	assert.False(t, statemachine.IsTransitionRejectedError(err))
	assert.Equal(t, Unauthenticated, sm.Current())

	assert.ErrorIs(t, sm.Fire(context.Background(), nil, nil), statemachine.ErrInvalidEvent)
}

func TestFire_Guards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	codeMatches := func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		code, ok := data.(string)
		return ok && code == "123456"
	}

	sm := loginMachine(t,
		statemachine.WithTransition(Pending2FA, Active, SubmitCode, statemachine.WithGuard(codeMatches)),
	)
	require.NoError(t, sm.Fire(ctx, VerifyPassword, nil))
	require.NoError(t, sm.Fire(ctx, Require2FA, nil))

	assert.False(t, sm.CanFire(ctx, SubmitCode, "000000"))
	err := sm.Fire(ctx, SubmitCode, "000000")
	require.Error(t, err)
	assert.True(t, statemachine.IsTransitionRejectedError(err))
	assert.Equal(t, Pending2FA, sm.Current())

	assert.True(t, sm.CanFire(ctx, SubmitCode, "123456"))
	require.NoError(t, sm.Fire(ctx, SubmitCode, "123456"))
	assert.Equal(t, Active, sm.Current())
}

func TestFire_GuardsAreAllRequired(t *testing.T) {
	t.Parallel()
	allow := func(context.Context, statemachine.State, statemachine.Event, any) bool { return true }
	deny := func(context.Context, statemachine.State, statemachine.Event, any) bool { return false }

	sm := statemachine.MustNew(Pending2FA,
		statemachine.WithTransition(Pending2FA, Active, SubmitCode, statemachine.WithGuards(allow, deny)),
	)
	err := sm.Fire(context.Background(), SubmitCode, nil)
	assert.True(t, statemachine.IsTransitionRejectedError(err))
}

func TestFire_FirstPassingTransitionWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	isBackupCode := func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
		return data == "backup"
	}
	always := func(context.Context, statemachine.State, statemachine.Event, any) bool { return true }

	sm := statemachine.MustNew(Pending2FA,
		statemachine.WithTransition(Pending2FA, Unauthenticated, SubmitCode, statemachine.WithGuard(isBackupCode)),
		statemachine.WithTransition(Pending2FA, Active, SubmitCode, statemachine.WithGuard(always)),
	)

	require.NoError(t, sm.Fire(ctx, SubmitCode, "totp"))
	assert.Equal(t, Active, sm.Current())

	require.NoError(t, sm.Reset())
	require.NoError(t, sm.Fire(ctx, SubmitCode, "backup"))
	assert.Equal(t, Unauthenticated, sm.Current())
}

func TestFire_ActionFailureKeepsState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	errActivate := errors.New("session store down")

	var calls int
	activate := func(_ context.Context, from, to statemachine.State, _ statemachine.Event, _ any) error {
		calls++
		assert.Equal(t, Pending2FA, from)
		assert.Equal(t, Active, to)
		if calls == 1 {
			return errActivate
		}
		return nil
	}

	sm := statemachine.MustNew(Pending2FA,
		statemachine.WithTransition(Pending2FA, Active, SubmitCode, statemachine.WithAction(activate)),
	)

	err := sm.Fire(ctx, SubmitCode, nil)
	assert.ErrorIs(t, err, errActivate)
	assert.Equal(t, Pending2FA, sm.Current())

	require.NoError(t, sm.Fire(ctx, SubmitCode, nil))
	assert.Equal(t, Active, sm.Current())
	assert.Equal(t, 2, calls)
}

func TestFire_ActionsRunInOrder(t *testing.T) {
	t.Parallel()
	var order []string
	record := func(name string) statemachine.Action {
		return func(context.Context, statemachine.State, statemachine.State, statemachine.Event, any) error {
			order = append(order, name)
			return nil
		}
	}

	sm := statemachine.MustNew(Pending2FA,
		statemachine.WithTransition(Pending2FA, Active, SubmitCode,
			statemachine.WithActions(record("consume"), record("activate")),
		),
	)
	require.NoError(t, sm.Fire(context.Background(), SubmitCode, nil))
	assert.Equal(t, []string{"consume", "activate"}, order)
}

func TestWithObserver(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	type change struct{ from, to, event string }
	var seen []change
	observer := func(_ context.Context, from, to statemachine.State, evt statemachine.Event) {
		seen = append(seen, change{from.Name(), to.Name(), evt.Name()})
	}
	failing := func(context.Context, statemachine.State, statemachine.State, statemachine.Event, any) error {
		return errors.New("nope")
	}

	sm := loginMachine(t,
		statemachine.WithObserver(observer),
		statemachine.WithObserver(nil),
		statemachine.WithTransition(Pending2FA, Active, SubmitCode, statemachine.WithAction(failing)),
	)
	require.NoError(t, sm.Fire(ctx, VerifyPassword, nil))
	require.NoError(t, sm.Fire(ctx, Require2FA, nil))
	require.Error(t, sm.Fire(ctx, SubmitCode, nil))
	require.Error(t, sm.Fire(ctx, Skip2FA, nil))
	require.NoError(t, sm.Reset())

	assert.Equal(t, []change{
		{"unauthenticated", "password_verified", "verify_password"},
		{"password_verified", "pending_2fa", "require_2fa"},
	}, seen)
}

func TestConstruction(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New(nil)
	assert.Error(t, err)

	_, err = statemachine.New(Unauthenticated, statemachine.WithTransition(nil, Active, SubmitCode))
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	assert.Panics(t, func() {
		statemachine.MustNew(Unauthenticated, statemachine.WithTransition(Unauthenticated, nil, SubmitCode))
	})

	sm := statemachine.MustNew(Unauthenticated)
	assert.ErrorIs(t, sm.AddTransition(Unauthenticated, nil, VerifyPassword, nil, nil), statemachine.ErrInvalidTransition)
	require.NoError(t, sm.AddTransition(Unauthenticated, PasswordVerified, VerifyPassword, nil, nil))
	assert.True(t, sm.CanFire(context.Background(), VerifyPassword, nil))
}

func TestFire_ConcurrentSubmissionsCommitOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var activations atomic.Int32
	activate := func(context.Context, statemachine.State, statemachine.State, statemachine.Event, any) error {
		activations.Add(1)
		return nil
	}
	sm := statemachine.MustNew(Pending2FA,
		statemachine.WithTransition(Pending2FA, Active, SubmitCode, statemachine.WithAction(activate)),
	)

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sm.Fire(ctx, SubmitCode, nil) == nil {
				succeeded.Add(1)
			}
			_ = sm.Current()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(1), activations.Load())
	assert.Equal(t, Active, sm.Current())
}

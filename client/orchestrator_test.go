package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mutex sync.Mutex

	forgotCalls int
	resendCalls int
	verifyCalls int
	resetCalls  int

	verifyErrs []error
	resetErrs  []error
	issueErr   error
}

func (f *fakeAPI) ForgotPassword(_ context.Context, _ string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.forgotCalls++
	return f.issueErr
}

func (f *fakeAPI) ResendVerification(_ context.Context, _ string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.resendCalls++
	return f.issueErr
}

func (f *fakeAPI) VerifyResetCode(_ context.Context, _ string, _ string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.verifyCalls++
	return popErr(&f.verifyErrs)
}

func (f *fakeAPI) VerifyEmail(_ context.Context, _ string, _ string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.verifyCalls++
	return popErr(&f.verifyErrs)
}

func (f *fakeAPI) ResetPassword(_ context.Context, _ string, _ string, _ string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.resetCalls++
	return popErr(&f.resetErrs)
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func newTestOrchestrator(api *fakeAPI, clock *testClock) (*Orchestrator, *FlowStore) {
	store := NewFlowStoreWithClock(NewMemoryKV(), clock)
	return NewOrchestratorWithClock(api, store, nil, clock), store
}

func TestStartOpensVerifyScreenWithCooldown(t *testing.T) {
	api := &fakeAPI{}
	clock := newTestClock()
	orch, store := newTestOrchestrator(api, clock)

	require.NoError(t, orch.Start(context.Background(), PurposeReset, "a@x.com"))

	assert.Equal(t, 1, api.forgotCalls)
	assert.Equal(t, ScreenVerify, orch.CurrentScreen(PurposeReset))

	session := store.Get(PurposeReset)
	require.NotNil(t, session)
	assert.Equal(t, "a@x.com", session.Email)
	assert.NotEmpty(t, session.Token)

	remaining := orch.ResendRemaining(PurposeReset)
	assert.Greater(t, remaining, 55*time.Second)
	assert.LessOrEqual(t, remaining, 60*time.Second)
}

func TestStartRegistrationUsesResendEndpoint(t *testing.T) {
	api := &fakeAPI{}
	orch, _ := newTestOrchestrator(api, newTestClock())

	require.NoError(t, orch.Start(context.Background(), PurposeRegistration, "b@x.com"))
	assert.Equal(t, 1, api.resendCalls)
	assert.Equal(t, 0, api.forgotCalls)
}

func TestResendBlockedDuringCooldown(t *testing.T) {
	api := &fakeAPI{}
	clock := newTestClock()
	orch, _ := newTestOrchestrator(api, clock)
	ctx := context.Background()

	require.NoError(t, orch.Start(ctx, PurposeReset, "a@x.com"))

	err := orch.Resend(ctx, PurposeReset)
	assert.ErrorIs(t, err, ErrCooldownActive)
	assert.Equal(t, 1, api.forgotCalls)

	clock.Advance(61 * time.Second)
	require.NoError(t, orch.Resend(ctx, PurposeReset))
	assert.Equal(t, 2, api.forgotCalls)

	// the countdown restarted
	assert.Greater(t, orch.ResendRemaining(PurposeReset), 55*time.Second)
}

func TestSubmitCodeResetCachesCodeAndAdvances(t *testing.T) {
	api := &fakeAPI{}
	orch, store := newTestOrchestrator(api, newTestClock())
	ctx := context.Background()

	require.NoError(t, orch.Start(ctx, PurposeReset, "a@x.com"))
	require.NoError(t, orch.SubmitCode(ctx, PurposeReset, "12345678"))

	assert.Equal(t, ScreenAct, orch.CurrentScreen(PurposeReset))
	session := store.Get(PurposeReset)
	require.NotNil(t, session)
	assert.Equal(t, "12345678", session.Code)
}

func TestSubmitCodeRegistrationFinishesFlow(t *testing.T) {
	api := &fakeAPI{}
	orch, store := newTestOrchestrator(api, newTestClock())
	ctx := context.Background()

	require.NoError(t, orch.Start(ctx, PurposeRegistration, "b@x.com"))
	require.NoError(t, orch.SubmitCode(ctx, PurposeRegistration, "12345678"))

	assert.Equal(t, ScreenDone, orch.CurrentScreen(PurposeRegistration))
	assert.Nil(t, store.Get(PurposeRegistration))
}

func TestSubmitCodeRetriesExactlyOnce(t *testing.T) {
	api := &fakeAPI{verifyErrs: []error{ErrInvalidOrExpired}}
	orch, _ := newTestOrchestrator(api, newTestClock())
	ctx := context.Background()

	require.NoError(t, orch.Start(ctx, PurposeReset, "a@x.com"))

	// first attempt fails, the single silent retry succeeds
	require.NoError(t, orch.SubmitCode(ctx, PurposeReset, "12345678"))
	assert.Equal(t, 2, api.verifyCalls)
}

func TestSubmitCodeRetryIsBounded(t *testing.T) {
	api := &fakeAPI{verifyErrs: []error{ErrInvalidOrExpired, ErrInvalidOrExpired}}
	orch, _ := newTestOrchestrator(api, newTestClock())
	ctx := context.Background()

	require.NoError(t, orch.Start(ctx, PurposeReset, "a@x.com"))

	err := orch.SubmitCode(ctx, PurposeReset, "12345678")
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
	assert.Equal(t, 2, api.verifyCalls)
}

func TestSubmitNewPasswordCompletesFlow(t *testing.T) {
	api := &fakeAPI{}
	orch, store := newTestOrchestrator(api, newTestClock())
	ctx := context.Background()

	require.NoError(t, orch.Start(ctx, PurposeReset, "a@x.com"))
	require.NoError(t, orch.SubmitCode(ctx, PurposeReset, "12345678"))
	require.NoError(t, orch.SubmitNewPassword(ctx, "NewPass123"))

	assert.Equal(t, ScreenDone, orch.CurrentScreen(PurposeReset))
	assert.Nil(t, store.Get(PurposeReset))
	assert.Equal(t, 1, api.resetCalls)
}

func TestSubmitNewPasswordDeadCodeRestartsFlow(t *testing.T) {
	api := &fakeAPI{resetErrs: []error{ErrInvalidOrExpired, ErrInvalidOrExpired}}
	orch, _ := newTestOrchestrator(api, newTestClock())
	ctx := context.Background()

	require.NoError(t, orch.Start(ctx, PurposeReset, "a@x.com"))
	require.NoError(t, orch.SubmitCode(ctx, PurposeReset, "12345678"))

	err := orch.SubmitNewPassword(ctx, "NewPass123")
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
	assert.Equal(t, 2, api.resetCalls)
	assert.Equal(t, ScreenRequest, orch.CurrentScreen(PurposeReset))
}

func TestSubmitNewPasswordWithoutConfirmedCode(t *testing.T) {
	api := &fakeAPI{}
	orch, _ := newTestOrchestrator(api, newTestClock())

	err := orch.SubmitNewPassword(context.Background(), "NewPass123")
	assert.ErrorIs(t, err, ErrNoActiveFlow)
}

func TestResumeRejectsSuspiciousToken(t *testing.T) {
	api := &fakeAPI{}
	orch, _ := newTestOrchestrator(api, newTestClock())

	for _, token := range []string{"short", `tok<script>12345`, `token"injected"`, "token'quote'123", `token\slash12345`} {
		screen, err := orch.Resume(PurposeReset, "a@x.com", token)
		assert.ErrorIs(t, err, ErrNotFound, "token %q", token)
		assert.Equal(t, ScreenRequest, screen)
	}
}

func TestResumePrefersURLEmailOverStored(t *testing.T) {
	api := &fakeAPI{}
	orch, store := newTestOrchestrator(api, newTestClock())
	ctx := context.Background()

	require.NoError(t, orch.Start(ctx, PurposeReset, "old@x.com"))

	screen, err := orch.Resume(PurposeReset, "new@x.com", "tok-1234567890")
	require.NoError(t, err)
	assert.Equal(t, ScreenVerify, screen)
	assert.Equal(t, "new@x.com", store.Get(PurposeReset).Email)
}

func TestResumeWithoutSessionGoesToRequest(t *testing.T) {
	api := &fakeAPI{}
	orch, _ := newTestOrchestrator(api, newTestClock())

	screen, err := orch.Resume(PurposeReset, "", "")
	require.NoError(t, err)
	assert.Equal(t, ScreenRequest, screen)
}

func TestResumeStaleSessionGoesToRequest(t *testing.T) {
	api := &fakeAPI{}
	clock := newTestClock()
	orch, store := newTestOrchestrator(api, clock)
	ctx := context.Background()

	require.NoError(t, orch.Start(ctx, PurposeReset, "a@x.com"))
	clock.Advance(DefaultSessionMaxAge + time.Minute)

	screen, err := orch.Resume(PurposeReset, "", "")
	require.NoError(t, err)
	assert.Equal(t, ScreenRequest, screen)
	assert.Nil(t, store.Get(PurposeReset))
}

func TestAbandonClearsState(t *testing.T) {
	api := &fakeAPI{}
	orch, store := newTestOrchestrator(api, newTestClock())
	ctx := context.Background()

	require.NoError(t, orch.Start(ctx, PurposeReset, "a@x.com"))
	orch.Abandon(PurposeReset)

	assert.Nil(t, store.Get(PurposeReset))
	assert.Equal(t, ScreenRequest, orch.CurrentScreen(PurposeReset))
}

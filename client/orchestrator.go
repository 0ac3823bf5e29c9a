package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/NienCongChua/lms-forum-id-sub000/internal/utils"

	"github.com/sirupsen/logrus"
)

// Screen is the page the user should be on for a flow.
type Screen string

const (
	ScreenRequest Screen = "request"
	ScreenVerify  Screen = "verify"
	ScreenAct     Screen = "act"
	ScreenDone    Screen = "done"
)

var (
	ErrCooldownActive = errors.New("resend cooldown active")
	ErrNoActiveFlow   = errors.New("no active flow")
	ErrNotFound       = errors.New("not found")
)

const (
	resendCooldown = 60 * time.Second
	minTokenLength = 10
	tokenBadChars  = "<>\"'\\"
)

// Orchestrator walks a user through request -> verify -> act for one of
// the two purposes, keeping cross-page state in the FlowStore and leaving
// every security decision to the server.
type Orchestrator struct {
	api    VerificationAPI
	store  *FlowStore
	clock  Clock
	logger logrus.FieldLogger

	mutex   sync.Mutex
	screens map[Purpose]Screen
}

func NewOrchestrator(api VerificationAPI, store *FlowStore, logger logrus.FieldLogger) *Orchestrator {
	return NewOrchestratorWithClock(api, store, logger, realClock{})
}

func NewOrchestratorWithClock(api VerificationAPI, store *FlowStore, logger logrus.FieldLogger, clock Clock) *Orchestrator {
	if store == nil {
		store = NewFlowStore(nil)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{
		api:     api,
		store:   store,
		clock:   clock,
		logger:  logger,
		screens: make(map[Purpose]Screen),
	}
}

// Start submits the request screen: it asks the server to issue a code for
// email and opens the verify screen with a fresh resend countdown.
func (o *Orchestrator) Start(ctx context.Context, purpose Purpose, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}

	if err := o.issue(ctx, purpose, email); err != nil {
		return err
	}

	token, err := utils.GenerateRandomToken(16)
	if err != nil {
		return err
	}
	o.store.Save(purpose, FlowSession{
		Email:        email,
		Token:        token,
		CountdownEnd: o.clock.Now().Add(resendCooldown),
	})
	o.setScreen(purpose, ScreenVerify)
	return nil
}

// ResendRemaining recomputes the countdown from the stored absolute
// deadline, so it survives reloads without drift.
func (o *Orchestrator) ResendRemaining(purpose Purpose) time.Duration {
	session := o.store.Get(purpose)
	if session == nil {
		return 0
	}
	remaining := session.CountdownEnd.Sub(o.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Resend re-issues the code once the cooldown has elapsed and restarts the
// countdown.
func (o *Orchestrator) Resend(ctx context.Context, purpose Purpose) error {
	session := o.store.Get(purpose)
	if session == nil {
		return ErrNoActiveFlow
	}
	if o.ResendRemaining(purpose) > 0 {
		return ErrCooldownActive
	}

	if err := o.issue(ctx, purpose, session.Email); err != nil {
		return err
	}
	o.store.Save(purpose, FlowSession{
		CountdownEnd: o.clock.Now().Add(resendCooldown),
	})
	return nil
}

// SubmitCode sends the user's code to the server. For the reset flow a
// success caches the confirmed code and moves to the password screen; for
// registration the account is active and the flow is finished.
func (o *Orchestrator) SubmitCode(ctx context.Context, purpose Purpose, code string) error {
	session := o.store.Get(purpose)
	if session == nil {
		return ErrNoActiveFlow
	}

	code = strings.TrimSpace(code)
	var err error
	if purpose == PurposeReset {
		err = o.withOneRetry(func() error {
			return o.api.VerifyResetCode(ctx, session.Email, code)
		})
	} else {
		err = o.withOneRetry(func() error {
			return o.api.VerifyEmail(ctx, session.Email, code)
		})
	}
	if err != nil {
		return err
	}

	if purpose == PurposeReset {
		o.store.Save(purpose, FlowSession{Code: code})
		o.setScreen(purpose, ScreenAct)
		return nil
	}
	o.store.Clear(purpose)
	o.setScreen(purpose, ScreenDone)
	return nil
}

// SubmitNewPassword finishes the reset flow with the code cached at the
// verify step. The server re-validates it; a consumed or expired code
// comes back as ErrInvalidOrExpired and the flow restarts from the
// request screen.
func (o *Orchestrator) SubmitNewPassword(ctx context.Context, newPassword string) error {
	session := o.store.Get(PurposeReset)
	if session == nil || session.Code == "" {
		return ErrNoActiveFlow
	}

	err := o.withOneRetry(func() error {
		return o.api.ResetPassword(ctx, session.Email, session.Code, newPassword)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpired) {
			o.setScreen(PurposeReset, ScreenRequest)
		}
		return err
	}

	o.store.Clear(PurposeReset)
	o.setScreen(PurposeReset, ScreenDone)
	return nil
}

// Resume reconciles a page load against the stored session. URL values
// represent the latest intent (a fresh email link), so on disagreement
// they win and the store is rewritten. The token check is a reflected
// parameter filter, not authentication.
func (o *Orchestrator) Resume(purpose Purpose, urlEmail string, urlToken string) (Screen, error) {
	if urlToken != "" && !tokenLooksSane(urlToken) {
		return ScreenRequest, ErrNotFound
	}

	session := o.store.Get(purpose)
	urlEmail = strings.TrimSpace(urlEmail)

	if urlEmail != "" {
		if session != nil && session.Email != "" && session.Email != urlEmail {
			o.logger.WithFields(logrus.Fields{
				"purpose": purpose,
				"stored":  session.Email,
				"url":     urlEmail,
			}).Warn("flow session email differs from url, preferring url")
		}
		o.store.Save(purpose, FlowSession{Email: urlEmail, Token: urlToken})
		session = o.store.Get(purpose)
	}

	if session == nil || !o.store.Valid(purpose, 0) {
		o.store.Clear(purpose)
		o.setScreen(purpose, ScreenRequest)
		return ScreenRequest, nil
	}

	screen := o.CurrentScreen(purpose)
	if screen == "" {
		screen = ScreenVerify
		o.setScreen(purpose, screen)
	}
	return screen, nil
}

func (o *Orchestrator) CurrentScreen(purpose Purpose) Screen {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.screens[purpose]
}

// Abandon throws the flow state away without completing it.
func (o *Orchestrator) Abandon(purpose Purpose) {
	o.store.Clear(purpose)
	o.setScreen(purpose, ScreenRequest)
}

func (o *Orchestrator) issue(ctx context.Context, purpose Purpose, email string) error {
	if purpose == PurposeReset {
		return o.api.ForgotPassword(ctx, email)
	}
	return o.api.ResendVerification(ctx, email)
}

// withOneRetry repeats a call exactly once when the server reports an
// invalid or expired code, to smooth over a double-submit race in the UI.
// A genuinely dead code fails the second attempt too and is surfaced.
func (o *Orchestrator) withOneRetry(call func() error) error {
	err := call()
	if !errors.Is(err, ErrInvalidOrExpired) {
		return err
	}
	o.logger.Debug("invalid code response, retrying once")
	return call()
}

func (o *Orchestrator) setScreen(purpose Purpose, screen Screen) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.screens[purpose] = screen
}

func tokenLooksSane(token string) bool {
	if len(token) < minTokenLength {
		return false
	}
	return !strings.ContainsAny(token, tokenBadChars)
}

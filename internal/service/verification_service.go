package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/NienCongChua/lms-forum-id-sub000/internal/entity"
	"github.com/NienCongChua/lms-forum-id-sub000/internal/repository"
	"github.com/NienCongChua/lms-forum-id-sub000/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// VerificationService owns the code lifecycle for account activation and
// password reset: issue (and resend), verify, complete. The database row is
// the only authority on whether a code is live; clients carry correlation
// state but never proof.
type VerificationService struct {
	users    repository.UserRepository
	codes    repository.VerificationCodeRepository
	sessions repository.SessionRepository
	audit    repository.AuditLogRepository

	emailSender  EmailSender
	passwordHash PasswordHasher
	clock        Clock
	logger       logrus.FieldLogger
}

func NewVerificationService(
	users repository.UserRepository,
	codes repository.VerificationCodeRepository,
	sessions repository.SessionRepository,
	audit repository.AuditLogRepository,
	emailSender EmailSender,
	passwordHash PasswordHasher,
	clock Clock,
	logger logrus.FieldLogger,
) *VerificationService {
	return &VerificationService{
		users:        users,
		codes:        codes,
		sessions:     sessions,
		audit:        audit,
		emailSender:  emailSender,
		passwordHash: passwordHash,
		clock:        clock,
		logger:       logger,
	}
}

// Issue generates a fresh code for (email, purpose), overwriting any prior
// live code, and mails it. An unknown email returns nil with no side effect
// so the response shape never reveals whether an account exists.
func (s *VerificationService) Issue(ctx context.Context, email string, purpose entity.VerificationPurpose) error {
	if strings.TrimSpace(email) == "" {
		return ErrInvalidInput
	}

	email = utils.NormalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		s.log().WithField("purpose", purpose).Debug("code requested for unknown email")
		_ = s.logAudit(ctx, nil, entity.UnknownEmail, map[string]any{"purpose": purpose})
		return nil
	}
	if purpose == entity.EmailActivation && user.IsActive() {
		return nil
	}

	code, err := utils.GenerateCode(entity.CodeLength)
	if err != nil {
		return err
	}

	now := s.now()
	record := &entity.VerificationCode{
		Email:     email,
		Purpose:   purpose,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(entity.TTLFor(purpose)),
	}
	if err := s.codes.Upsert(ctx, record); err != nil {
		return err
	}
	_ = s.logAudit(ctx, &user.ID, entity.CodeIssued, map[string]any{"purpose": purpose})

	if err := s.sendCode(ctx, email, purpose, code); err != nil {
		// The stored code stays valid; the user can ask for a resend.
		s.log().WithError(err).WithField("email", email).Error("verification email failed")
		return ErrEmailSend
	}
	return nil
}

// Verify checks a submitted code. For PasswordReset it only confirms the
// code is usable; consumption happens in Complete so the user can move to
// the password screen without retyping the code. For EmailActivation there
// is no further step, so a match consumes the code and activates the
// account in the same call.
func (s *VerificationService) Verify(ctx context.Context, email string, purpose entity.VerificationPurpose, submitted string) error {
	email = utils.NormalizeEmail(email)
	record, err := s.usableMatch(ctx, email, purpose, submitted)
	if err != nil {
		return err
	}

	if purpose != entity.EmailActivation {
		return nil
	}

	ok, err := s.codes.Consume(ctx, record.ID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidOrExpiredCode
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidOrExpiredCode
	}
	if err := s.users.Activate(ctx, user.ID); err != nil {
		return err
	}
	_ = s.logAudit(ctx, &user.ID, entity.AccountActivated, nil)
	return nil
}

// Complete finishes a password reset: it re-validates the code from
// scratch (a prior Verify is never trusted as a cache), spends it with a
// conditional update so two racing calls cannot both succeed, and stores
// the new credential.
func (s *VerificationService) Complete(ctx context.Context, email string, purpose entity.VerificationPurpose, submitted string, newPassword string) error {
	if purpose != entity.PasswordReset {
		return ErrInvalidInput
	}
	if len(newPassword) < 8 {
		return ErrInvalidInput
	}

	email = utils.NormalizeEmail(email)
	record, err := s.usableMatch(ctx, email, purpose, submitted)
	if err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidOrExpiredCode
	}

	hash, err := s.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}

	// The code is spent before the credential write on purpose. If the
	// password update fails the code is already dead and the user must
	// restart from issue; the reverse order could leave a still-live
	// code after a successful password change.
	ok, err := s.codes.Consume(ctx, record.ID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidOrExpiredCode
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	if s.sessions != nil {
		_ = s.sessions.RevokeAllByUser(ctx, user.ID)
	}
	_ = s.logAudit(ctx, &user.ID, entity.PasswordChanged, nil)
	return nil
}

func (s *VerificationService) usableMatch(
	ctx context.Context,
	email string,
	purpose entity.VerificationPurpose,
	submitted string,
) (*entity.VerificationCode, error) {

	record, err := s.codes.Find(ctx, email, purpose)
	if err != nil {
		return nil, err
	}
	if record == nil || !record.Usable(s.now()) {
		return nil, ErrInvalidOrExpiredCode
	}
	if !utils.CodesEqual(record.Code, submitted) {
		_ = s.codes.IncrementAttempts(ctx, record.ID)
		_ = s.logAudit(ctx, nil, entity.CodeRejected, map[string]any{"purpose": purpose})
		return nil, ErrInvalidOrExpiredCode
	}
	return record, nil
}

func (s *VerificationService) sendCode(ctx context.Context, email string, purpose entity.VerificationPurpose, code string) error {
	if s.emailSender == nil {
		return nil
	}
	if purpose == entity.PasswordReset {
		return s.emailSender.SendPasswordResetEmail(ctx, email, code)
	}
	return s.emailSender.SendActivationEmail(ctx, email, code)
}

func (s *VerificationService) logAudit(
	ctx context.Context,
	userID *uuid.UUID,
	action entity.AuditAction,
	metadata map[string]any,
) error {
	if s.audit == nil {
		return nil
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		payload = datatypes.JSON(bytes)
	}
	return s.audit.Log(ctx, &entity.AuditLog{
		UserID:   userID,
		Action:   action,
		Metadata: payload,
	})
}

func (s *VerificationService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

func (s *VerificationService) log() logrus.FieldLogger {
	if s.logger == nil {
		return logrus.StandardLogger()
	}
	return s.logger
}

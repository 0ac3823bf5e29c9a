package repository

import (
	"context"
	"errors"
	"time"

	"github.com/NienCongChua/lms-forum-id-sub000/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VerificationCodeRepository interface {
	// Upsert writes the single live code for (email, purpose) in one
	// statement, so concurrent issues resolve to last-writer-wins.
	Upsert(ctx context.Context, code *entity.VerificationCode) error
	Find(ctx context.Context, email string, purpose entity.VerificationPurpose) (*entity.VerificationCode, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) error
	// Consume marks the code used iff it is still unconsumed and unexpired.
	// Returns false when another caller spent it first.
	Consume(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) error
}

type verificationCodeRepository struct {
	db *gorm.DB
}

func NewVerificationCodeRepository(db *gorm.DB) VerificationCodeRepository {
	return &verificationCodeRepository{db: db}
}

func (r *verificationCodeRepository) Upsert(ctx context.Context, code *entity.VerificationCode) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "email"}, {Name: "purpose"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"code", "issued_at", "expires_at", "consumed_at", "attempts", "updated_at",
			}),
		}).
		Create(code).Error
}

func (r *verificationCodeRepository) Find(
	ctx context.Context,
	email string,
	purpose entity.VerificationPurpose,
) (*entity.VerificationCode, error) {

	var code entity.VerificationCode
	err := r.db.WithContext(ctx).
		Where("email = ? AND purpose = ?", email, purpose).
		First(&code).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &code, err
}

func (r *verificationCodeRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entity.VerificationCode{}).
		Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1")).
		Error
}

func (r *verificationCodeRepository) Consume(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.VerificationCode{}).
		Where("id = ? AND consumed_at IS NULL AND expires_at > ?", id, now).
		Update("consumed_at", &now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *verificationCodeRepository) DeleteExpired(ctx context.Context, now time.Time) error {
	return r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&entity.VerificationCode{}).
		Error
}

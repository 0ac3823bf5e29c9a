package service

import (
	"context"
	"sync"
	"time"

	"github.com/NienCongChua/lms-forum-id-sub000/internal/entity"

	"github.com/google/uuid"
)

type fakeClock struct {
	mutex sync.Mutex
	now   time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

type fakeUserRepo struct {
	mutex       sync.Mutex
	users       map[uuid.UUID]*entity.User
	passwordErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*entity.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *entity.User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) Activate(_ context.Context, userID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if user, ok := r.users[userID]; ok {
		user.Status = entity.UserStatusActive
	}
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.passwordErr != nil {
		return r.passwordErr
	}
	if user, ok := r.users[userID]; ok {
		user.PasswordHash = &passwordHash
	}
	return nil
}

func (r *fakeUserRepo) List(_ context.Context, limit, offset int) ([]entity.User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	users := make([]entity.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, *user)
	}
	return users, nil
}

type fakeCodeRepo struct {
	mutex              sync.Mutex
	codes              map[string]*entity.VerificationCode
	deleteExpiredCalls int
}

func newFakeCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{codes: make(map[string]*entity.VerificationCode)}
}

func codeKey(email string, purpose entity.VerificationPurpose) string {
	return email + "|" + string(purpose)
}

func (r *fakeCodeRepo) Upsert(_ context.Context, code *entity.VerificationCode) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}
	copied := *code
	r.codes[codeKey(code.Email, code.Purpose)] = &copied
	return nil
}

func (r *fakeCodeRepo) Find(_ context.Context, email string, purpose entity.VerificationPurpose) (*entity.VerificationCode, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	code, ok := r.codes[codeKey(email, purpose)]
	if !ok {
		return nil, nil
	}
	copied := *code
	return &copied, nil
}

func (r *fakeCodeRepo) IncrementAttempts(_ context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, code := range r.codes {
		if code.ID == id {
			code.Attempts++
		}
	}
	return nil
}

func (r *fakeCodeRepo) Consume(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, code := range r.codes {
		if code.ID == id {
			if code.ConsumedAt != nil || now.After(code.ExpiresAt) {
				return false, nil
			}
			consumedAt := now
			code.ConsumedAt = &consumedAt
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCodeRepo) DeleteExpired(_ context.Context, now time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.deleteExpiredCalls++
	for key, code := range r.codes {
		if code.ExpiresAt.Before(now) {
			delete(r.codes, key)
		}
	}
	return nil
}

type fakeSessionRepo struct {
	mutex        sync.Mutex
	sessions     map[uuid.UUID]*entity.Session
	cleanupCalls int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*entity.Session)}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *entity.Session) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) FindByTokenHash(_ context.Context, hash string) (*entity.Session, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, session := range r.sessions {
		if session.TokenHash == hash && session.RevokedAt == nil && session.ExpiresAt.After(time.Now()) {
			copied := *session
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) RotateToken(_ context.Context, sessionID uuid.UUID, newHash string, newExpiry time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if session, ok := r.sessions[sessionID]; ok {
		session.TokenHash = newHash
		session.ExpiresAt = newExpiry
	}
	return nil
}

func (r *fakeSessionRepo) Revoke(_ context.Context, sessionID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if session, ok := r.sessions[sessionID]; ok {
		now := time.Now()
		session.RevokedAt = &now
	}
	return nil
}

func (r *fakeSessionRepo) RevokeAllByUser(_ context.Context, userID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	now := time.Now()
	for _, session := range r.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &now
		}
	}
	return nil
}

func (r *fakeSessionRepo) CleanupExpired(_ context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.cleanupCalls++
	return nil
}

func (r *fakeSessionRepo) activeCount(userID uuid.UUID) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	count := 0
	for _, session := range r.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			count++
		}
	}
	return count
}

type fakeAuditRepo struct {
	mutex   sync.Mutex
	entries []entity.AuditLog
}

func (r *fakeAuditRepo) Log(_ context.Context, log *entity.AuditLog) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.entries = append(r.entries, *log)
	return nil
}

type sentEmail struct {
	To      string
	Code    string
	Purpose entity.VerificationPurpose
}

type fakeEmailSender struct {
	mutex sync.Mutex
	sent  []sentEmail
	fail  bool
}

func (s *fakeEmailSender) SendActivationEmail(_ context.Context, email string, code string) error {
	return s.record(email, code, entity.EmailActivation)
}

func (s *fakeEmailSender) SendPasswordResetEmail(_ context.Context, email string, code string) error {
	return s.record(email, code, entity.PasswordReset)
}

func (s *fakeEmailSender) record(email, code string, purpose entity.VerificationPurpose) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.fail {
		return context.DeadlineExceeded
	}
	s.sent = append(s.sent, sentEmail{To: email, Code: code, Purpose: purpose})
	return nil
}

func (s *fakeEmailSender) lastCode() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if len(s.sent) == 0 {
		return ""
	}
	return s.sent[len(s.sent)-1].Code
}

func (s *fakeEmailSender) count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.sent)
}

// plainHasher keeps auth tests fast and assertable.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Verify(hash string, password string) bool {
	return hash == "hashed:"+password
}

package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/megafartCc/Roblex.io/internals/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type sentCode struct {
	email string
	code  string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentCode
}

func (r *recordingSender) DispatchVerificationCode(email, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentCode{email: email, code: code})
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func (r *recordingSender) last(t *testing.T) sentCode {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sent)
	return r.sent[len(r.sent)-1]
}

func newTestStore(t *testing.T, requireVerification bool) (*AccountStore, *gorm.DB, *recordingSender) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	sender := &recordingSender{}
	s := New(db, sender, 8, requireVerification, 5*time.Minute, zerolog.Nop())
	return s, db, sender
}

func fetchUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	var user models.User
	require.NoError(t, db.Where("email = ?", email).First(&user).Error)
	return user
}

func TestRegisterWithoutVerificationRequirement(t *testing.T) {
	s, db, sender := newTestStore(t, false)

	result, err := s.Register("a@x.com", "password1")
	require.NoError(t, err)
	assert.False(t, result.CodeSent)
	assert.False(t, result.Refreshed)
	assert.NotZero(t, result.UserID)

	user := fetchUser(t, db, "a@x.com")
	assert.True(t, user.IsVerified)
	assert.Nil(t, user.VerificationCode)
	assert.Nil(t, user.CodeExpiresAt)
	assert.Equal(t, 0, sender.count())

	// With verification disabled any existing email is a conflict.
	_, err = s.Register("a@x.com", "password2")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegisterIssuesCode(t *testing.T) {
	s, db, sender := newTestStore(t, true)

	base := time.Now()
	s.now = func() time.Time { return base }

	result, err := s.Register("a@x.com", "password1")
	require.NoError(t, err)
	assert.True(t, result.CodeSent)

	user := fetchUser(t, db, "a@x.com")
	assert.False(t, user.IsVerified)
	require.NotNil(t, user.VerificationCode)
	assert.Regexp(t, `^[0-9]{6}$`, *user.VerificationCode)
	require.NotNil(t, user.CodeExpiresAt)
	assert.WithinDuration(t, base.Add(5*time.Minute), *user.CodeExpiresAt, time.Second)

	require.Equal(t, 1, sender.count())
	assert.Equal(t, sentCode{email: "a@x.com", code: *user.VerificationCode}, sender.last(t))
}

func TestRegisterNormalizesEmail(t *testing.T) {
	s, db, _ := newTestStore(t, false)

	_, err := s.Register("  A@X.Com ", "password1")
	require.NoError(t, err)

	user := fetchUser(t, db, "a@x.com")
	assert.Equal(t, "a@x.com", user.Email)

	_, err = s.Register("a@x.com", "password1")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegisterRefreshesUnverified(t *testing.T) {
	s, _, sender := newTestStore(t, true)

	_, err := s.Register("a@x.com", "password1")
	require.NoError(t, err)
	firstCode := sender.last(t).code

	// A repeat registration never conflicts while the account is unverified:
	// it rotates the code and overwrites the hash.
	result, err := s.Register("a@x.com", "password2")
	require.NoError(t, err)
	assert.True(t, result.Refreshed)
	assert.True(t, result.CodeSent)
	require.Equal(t, 2, sender.count())
	secondCode := sender.last(t).code

	_, err = s.VerifyCode("a@x.com", firstCode)
	assert.ErrorIs(t, err, ErrInvalidCode, "the first code must be invalidated by the refresh")

	_, err = s.VerifyCode("a@x.com", secondCode)
	require.NoError(t, err)

	// The refresh replaced the password hash as well.
	_, err = s.Login("a@x.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	login, err := s.Login("a@x.com", "password2")
	require.NoError(t, err)
	assert.NotZero(t, login.UserID)
}

func TestRegisterRejectsVerifiedEmail(t *testing.T) {
	s, db, sender := newTestStore(t, true)

	_, err := s.Register("a@x.com", "password1")
	require.NoError(t, err)
	_, err = s.VerifyCode("a@x.com", sender.last(t).code)
	require.NoError(t, err)

	before := fetchUser(t, db, "a@x.com")
	_, err = s.Register("a@x.com", "password2")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	after := fetchUser(t, db, "a@x.com")
	assert.Equal(t, before.PasswordHash, after.PasswordHash, "a verified account must not be mutated")
	assert.Equal(t, 1, sender.count())
}

func TestRegisterValidation(t *testing.T) {
	s, _, _ := newTestStore(t, true)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"missing email", "", "password1"},
		{"malformed email", "not-an-email", "password1"},
		{"whitespace in email", "a b@x.com", "password1"},
		{"missing password", "a@x.com", ""},
		{"short password", "a@x.com", "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(tt.email, tt.password)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestLogin(t *testing.T) {
	s, db, sender := newTestStore(t, true)

	_, err := s.Register("a@x.com", "password1")
	require.NoError(t, err)

	_, err = s.Login("missing@x.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login("a@x.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login("a@x.com", "password1")
	assert.ErrorIs(t, err, ErrNotVerified, "valid credentials on a pending account must be distinguishable")

	_, err = s.VerifyCode("a@x.com", sender.last(t).code)
	require.NoError(t, err)

	result, err := s.Login("a@x.com", "password1")
	require.NoError(t, err)
	assert.False(t, result.IsAdmin)
	assert.Equal(t, fetchUser(t, db, "a@x.com").ID, result.UserID)
}

func TestLoginReturnsAdminFlag(t *testing.T) {
	s, db, _ := newTestStore(t, false)

	_, err := s.Register("admin@x.com", "password1")
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Where("email = ?", "admin@x.com").Update("is_admin", true).Error)

	result, err := s.Login("admin@x.com", "password1")
	require.NoError(t, err)
	assert.True(t, result.IsAdmin)
}

func TestLoginIgnoresVerificationWhenDisabled(t *testing.T) {
	s, db, _ := newTestStore(t, false)

	// A legacy unverified row; with the requirement off it can still log in.
	_, err := s.Register("seed@x.com", "password1")
	require.NoError(t, err)
	seed := fetchUser(t, db, "seed@x.com")
	require.NoError(t, db.Create(&models.User{
		Email:        "legacy@x.com",
		PasswordHash: seed.PasswordHash,
	}).Error)

	result, err := s.Login("legacy@x.com", "password1")
	require.NoError(t, err)
	assert.NotZero(t, result.UserID)
}

func TestVerifyCode(t *testing.T) {
	s, db, sender := newTestStore(t, true)

	_, err := s.Register("a@x.com", "password1")
	require.NoError(t, err)
	code := sender.last(t).code

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, err = s.VerifyCode("a@x.com", wrong)
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = s.VerifyCode("other@x.com", code)
	assert.ErrorIs(t, err, ErrInvalidCode, "a matching code under the wrong email must not verify anything")

	result, err := s.VerifyCode("a@x.com", code)
	require.NoError(t, err)
	assert.False(t, result.AlreadyVerified)

	user := fetchUser(t, db, "a@x.com")
	assert.True(t, user.IsVerified)
	assert.Nil(t, user.VerificationCode)
	assert.Nil(t, user.CodeExpiresAt)

	// The consumed code is gone; reuse answers the same as any bad code.
	_, err = s.VerifyCode("a@x.com", code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerifyCodeAlreadyVerifiedIsNoOp(t *testing.T) {
	s, db, _ := newTestStore(t, true)

	// A verified row that still carries a code (pre-cleanup data shape).
	code := "123456"
	expires := time.Now().Add(5 * time.Minute)
	require.NoError(t, db.Create(&models.User{
		Email:            "a@x.com",
		PasswordHash:     "x",
		IsVerified:       true,
		VerificationCode: &code,
		CodeExpiresAt:    &expires,
	}).Error)

	result, err := s.VerifyCode("a@x.com", code)
	require.NoError(t, err)
	assert.True(t, result.AlreadyVerified)

	user := fetchUser(t, db, "a@x.com")
	assert.True(t, user.IsVerified)
}

func TestVerifyCodeExpiryBoundary(t *testing.T) {
	s, db, sender := newTestStore(t, true)

	base := time.Now().Truncate(time.Second)
	s.now = func() time.Time { return base }

	_, err := s.Register("fresh@x.com", "password1")
	require.NoError(t, err)
	freshCode := sender.last(t).code
	expiresAt := *fetchUser(t, db, "fresh@x.com").CodeExpiresAt

	// One millisecond before expiry the code is still good.
	s.now = func() time.Time { return expiresAt.Add(-time.Millisecond) }
	_, err = s.VerifyCode("fresh@x.com", freshCode)
	require.NoError(t, err)

	_, err = s.Register("stale@x.com", "password1")
	require.NoError(t, err)
	staleCode := sender.last(t).code
	staleExpiry := *fetchUser(t, db, "stale@x.com").CodeExpiresAt

	// One millisecond past expiry it is rejected and lazily invalidated.
	s.now = func() time.Time { return staleExpiry.Add(time.Millisecond) }
	_, err = s.VerifyCode("stale@x.com", staleCode)
	assert.ErrorIs(t, err, ErrCodeExpired)

	user := fetchUser(t, db, "stale@x.com")
	assert.False(t, user.IsVerified)
	assert.Nil(t, user.VerificationCode, "expired code must be swept on access")
	assert.Nil(t, user.CodeExpiresAt)

	// The swept code no longer matches anything.
	_, err = s.VerifyCode("stale@x.com", staleCode)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerifyCodeInputValidation(t *testing.T) {
	s, _, _ := newTestStore(t, true)

	for _, code := range []string{"", "12345", "1234567", "12345a", "abcdef"} {
		_, err := s.VerifyCode("a@x.com", code)
		assert.ErrorIs(t, err, ErrInvalidInput, "code %q", code)
	}
}

func TestResendCode(t *testing.T) {
	s, db, sender := newTestStore(t, true)

	_, err := s.ResendCode("missing@x.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Register("a@x.com", "password1")
	require.NoError(t, err)
	firstCode := sender.last(t).code

	result, err := s.ResendCode("a@x.com")
	require.NoError(t, err)
	assert.False(t, result.AlreadyVerified)
	require.Equal(t, 2, sender.count())
	secondCode := sender.last(t).code

	// Resend leaves exactly one live code.
	_, err = s.VerifyCode("a@x.com", firstCode)
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, err = s.VerifyCode("a@x.com", secondCode)
	require.NoError(t, err)

	// Already verified: success without a new send.
	result, err = s.ResendCode("a@x.com")
	require.NoError(t, err)
	assert.True(t, result.AlreadyVerified)
	assert.Equal(t, 2, sender.count())

	user := fetchUser(t, db, "a@x.com")
	assert.Nil(t, user.VerificationCode)
}

func TestVerificationDisabledOperations(t *testing.T) {
	s, _, _ := newTestStore(t, false)

	_, err := s.VerifyCode("a@x.com", "123456")
	assert.ErrorIs(t, err, ErrVerificationDisabled)

	_, err = s.ResendCode("a@x.com")
	assert.ErrorIs(t, err, ErrVerificationDisabled)
}

package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/megafartCc/Roblex.io/internals/models"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	codePattern  = regexp.MustCompile(`^[0-9]{6}$`)
)

// CodeSender receives the "send a code" side effect. Delivery is
// fire-and-forget: implementations return before the email is sent and report
// their outcome through their own logging, never through the store's result.
type CodeSender interface {
	DispatchVerificationCode(email, code string)
}

// AccountStore enforces identity uniqueness, credential correctness, and the
// verification-code state machine. All mutations are single guarded UPDATE
// statements keyed by the unique email, so two concurrent calls for the same
// address cannot interleave into a half-written record: one statement wins.
type AccountStore struct {
	db     *gorm.DB
	sender CodeSender
	log    zerolog.Logger

	minPasswordLength   int
	requireVerification bool
	codeTTL             time.Duration

	now func() time.Time
}

func New(db *gorm.DB, sender CodeSender, minPasswordLength int, requireVerification bool, codeTTL time.Duration, logger zerolog.Logger) *AccountStore {
	return &AccountStore{
		db:                  db,
		sender:              sender,
		log:                 logger,
		minPasswordLength:   minPasswordLength,
		requireVerification: requireVerification,
		codeTTL:             codeTTL,
		now:                 time.Now,
	}
}

type RegisterResult struct {
	UserID    uint
	CodeSent  bool
	Refreshed bool
}

type LoginResult struct {
	UserID  uint
	IsAdmin bool
}

type VerifyResult struct {
	AlreadyVerified bool
}

type ResendResult struct {
	AlreadyVerified bool
}

// Register creates the account, or refreshes the outstanding code (and the
// password hash, in case the user mistyped it) when the email exists but is
// still unverified. A verified email is rejected with ErrAlreadyRegistered.
func (s *AccountStore) Register(email, password string) (*RegisterResult, error) {
	email = normalizeEmail(email)
	if err := credentialError(email, password, s.minPasswordLength); err != nil {
		return nil, err
	}

	var existing models.User
	err := s.db.Where("email = ?", email).First(&existing).Error
	switch {
	case err == nil:
		if !s.requireVerification || existing.IsVerified {
			return nil, ErrAlreadyRegistered
		}
		return s.refreshUnverified(email, password, existing.ID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.create(email, password)
	default:
		return nil, s.internal("register lookup", err)
	}
}

func (s *AccountStore) create(email, password string) (*RegisterResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return nil, s.internal("hash password", err)
	}

	user := models.User{
		Email:        email,
		PasswordHash: string(hash),
	}

	var code string
	if s.requireVerification {
		code = generateVerificationCode()
		expiresAt := s.now().Add(s.codeTTL)
		user.VerificationCode = &code
		user.CodeExpiresAt = &expiresAt
	} else {
		user.IsVerified = true
	}

	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a concurrent race for the same email.
			return nil, ErrAlreadyRegistered
		}
		return nil, s.internal("create user", err)
	}

	if s.requireVerification {
		s.sender.DispatchVerificationCode(email, code)
	}
	return &RegisterResult{UserID: user.ID, CodeSent: s.requireVerification}, nil
}

// refreshUnverified overwrites hash, code, and expiry in one statement; the
// is_verified guard keeps it from racing a concurrent successful verify.
func (s *AccountStore) refreshUnverified(email, password string, userID uint) (*RegisterResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	if err != nil {
		return nil, s.internal("hash password", err)
	}

	code := generateVerificationCode()
	expiresAt := s.now().Add(s.codeTTL)

	res := s.db.Model(&models.User{}).
		Where("email = ? AND is_verified = ?", email, false).
		Updates(map[string]interface{}{
			"password_hash":     string(hash),
			"verification_code": code,
			"code_expires_at":   expiresAt,
			"is_verified":       false,
		})
	if res.Error != nil {
		return nil, s.internal("refresh unverified user", res.Error)
	}
	if res.RowsAffected == 0 {
		// Verified in the meantime; same answer as the verified branch above.
		return nil, ErrAlreadyRegistered
	}

	s.sender.DispatchVerificationCode(email, code)
	return &RegisterResult{UserID: userID, CodeSent: true, Refreshed: true}, nil
}

// Login checks email + password and, when verification is required, that the
// account has completed it. It never returns the stored hash.
func (s *AccountStore) Login(email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if err := credentialError(email, password, 0); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, s.internal("login lookup", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if s.requireVerification && !user.IsVerified {
		return nil, ErrNotVerified
	}

	return &LoginResult{UserID: user.ID, IsAdmin: user.IsAdmin}, nil
}

// VerifyCode consumes an outstanding code. The lookup is by (email, code)
// pair, so a mismatch on either half answers the same ErrInvalidCode. A code
// presented exactly at its expiry instant is still accepted; rejection starts
// strictly after it, and an expired code is invalidated on access rather than
// by a background sweep.
func (s *AccountStore) VerifyCode(email, code string) (*VerifyResult, error) {
	if !s.requireVerification {
		return nil, ErrVerificationDisabled
	}

	email = normalizeEmail(email)
	if email == "" || !codePattern.MatchString(code) {
		return nil, fmt.Errorf("%w: email and a 6-digit code are required", ErrInvalidInput)
	}

	var user models.User
	if err := s.db.Where("email = ? AND verification_code = ?", email, code).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, s.internal("verify lookup", err)
	}

	if user.IsVerified {
		return &VerifyResult{AlreadyVerified: true}, nil
	}

	if user.CodeExpiresAt != nil && s.now().After(*user.CodeExpiresAt) {
		res := s.db.Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]interface{}{
				"verification_code": nil,
				"code_expires_at":   nil,
			})
		if res.Error != nil {
			return nil, s.internal("invalidate expired code", res.Error)
		}
		return nil, ErrCodeExpired
	}

	// Compare-and-set: the code must still be the outstanding one when the
	// update lands. Verification is terminal; nothing un-sets is_verified.
	res := s.db.Model(&models.User{}).
		Where("id = ? AND verification_code = ? AND is_verified = ?", user.ID, code, false).
		Updates(map[string]interface{}{
			"is_verified":       true,
			"verification_code": nil,
			"code_expires_at":   nil,
		})
	if res.Error != nil {
		return nil, s.internal("mark verified", res.Error)
	}
	if res.RowsAffected == 0 {
		// The code rotated underneath us (register-refresh or resend won).
		return nil, ErrInvalidCode
	}

	return &VerifyResult{}, nil
}

// ResendCode issues a fresh code for an unverified account. The previous
// outstanding code becomes permanently invalid: there is only ever one live
// code per user.
func (s *AccountStore) ResendCode(email string) (*ResendResult, error) {
	if !s.requireVerification {
		return nil, ErrVerificationDisabled
	}

	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.internal("resend lookup", err)
	}

	if user.IsVerified {
		return &ResendResult{AlreadyVerified: true}, nil
	}

	code := generateVerificationCode()
	expiresAt := s.now().Add(s.codeTTL)

	res := s.db.Model(&models.User{}).
		Where("email = ? AND is_verified = ?", email, false).
		Updates(map[string]interface{}{
			"verification_code": code,
			"code_expires_at":   expiresAt,
		})
	if res.Error != nil {
		return nil, s.internal("refresh code", res.Error)
	}
	if res.RowsAffected == 0 {
		return &ResendResult{AlreadyVerified: true}, nil
	}

	s.sender.DispatchVerificationCode(email, code)
	return &ResendResult{}, nil
}

// generateVerificationCode uses crypto/rand for better security
func generateVerificationCode() string {
	max := big.NewInt(1000000)
	n, _ := rand.Int(rand.Reader, max)
	return fmt.Sprintf("%06d", n.Int64())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func credentialError(email, password string, minPasswordLength int) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: enter a valid email address", ErrInvalidInput)
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if minPasswordLength > 0 && len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	return nil
}

// internal logs the storage failure server-side and hands the caller the
// opaque sentinel; raw DB errors never reach the HTTP boundary.
func (s *AccountStore) internal(op string, err error) error {
	s.log.Error().Err(err).Str("op", op).Msg("account store failure")
	return ErrInternal
}

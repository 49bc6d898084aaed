package accounts

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/socialconnect/backend/internal/logging"
	"github.com/socialconnect/backend/internal/models"
	"github.com/socialconnect/backend/internal/repositories"
)

var (
	// ErrInvalidCredentials is returned when an email and password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("account already exists")
	// ErrCodeTaken is returned when a requested connect code is held by someone else.
	ErrCodeTaken = errors.New("connect code already in use")
	// ErrNoUsers is returned when the directory has nobody to suggest.
	ErrNoUsers = errors.New("no other users")
)

const (
	codeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength        = 6
	minCodeLength     = 3
	minPasswordLength = 6
	// bcrypt only hashes the first 72 bytes and rejects longer input.
	maxPasswordBytes = 72
	maxCodeAttempts   = 5
)

var (
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
	codePattern  = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// Store is the persistence the account service needs.
type Store interface {
	repositories.UserRepository
	repositories.CodeRepository
	repositories.CredentialRepository
}

// Service implements sign-up, login, profiles and connect codes.
type Service struct {
	store    Store
	clock    clockwork.Clock
	hashCost int
	onChange func(userID string)
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// WithChangeHook registers a callback run after a profile changes, used to drop cached copies.
func WithChangeHook(fn func(userID string)) Option {
	return func(s *Service) { s.onChange = fn }
}

// NewService constructs an account service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		clock:    clockwork.NewRealClock(),
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignUpInput is the sign-up form.
type SignUpInput struct {
	Name            string `json:"name"`
	Place           string `json:"place"`
	Gender          string `json:"gender"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Code            string `json:"code"`
}

// ProfileInput holds the editable profile fields.
type ProfileInput struct {
	Name   string `json:"name"`
	Place  string `json:"place"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

// SignUp validates the form, reserves the connect code and creates the account.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (models.User, error) {
	ctx, span := logging.StartSpan(ctx, "accounts.signup")
	defer span.End()
	logger := logging.FromContext(ctx)

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := validateSignUp(in); err != nil {
		return models.User{}, err
	}
	code := strings.ToUpper(strings.TrimSpace(in.Code))

	if _, err := s.store.FindCredential(ctx, in.Email); err == nil {
		return models.User{}, ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, fmt.Errorf("check existing account: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	userID := uuid.NewString()
	if err := s.store.Reserve(ctx, code, userID); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			suggestion, _ := GenerateCode()
			return models.User{}, models.Alert("Code Already Taken",
				fmt.Sprintf("The code %q is already in use. Please choose a different code or try: %s", code, suggestion))
		}
		return models.User{}, fmt.Errorf("reserve code: %w", err)
	}

	if err := s.store.CreateCredential(ctx, models.Credential{Email: in.Email, UserID: userID, PasswordHash: string(hashed)}); err != nil {
		s.releaseCode(ctx, code)
		if errors.Is(err, repositories.ErrConflict) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("store credential: %w", err)
	}

	now := s.clock.Now().UnixMilli()
	user := models.User{
		ID:        userID,
		Name:      strings.TrimSpace(in.Name),
		Place:     strings.TrimSpace(in.Place),
		Gender:    in.Gender,
		Code:      code,
		Email:     in.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, user); err != nil {
		s.releaseCode(ctx, code)
		if delErr := s.store.DeleteCredential(ctx, in.Email); delErr != nil {
			logger.Error("delete credential", "userId", userID, "error", delErr)
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}

	logger.Info("user signed up", "userId", userID)
	return user, nil
}

// Login verifies an email and password and returns the account.
func (s *Service) Login(ctx context.Context, email, password string) (models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return models.User{}, models.Alert("Missing Information", "Please enter both email and password.")
	}
	if !emailPattern.MatchString(email) {
		return models.User{}, models.Alert("Invalid Email", "Please enter a valid email address.")
	}

	cred, err := s.store.FindCredential(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("find credential: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		logging.FromContext(ctx).Warn("login password mismatch", "userId", cred.UserID)
		return models.User{}, ErrInvalidCredentials
	}

	return s.store.Get(ctx, cred.UserID)
}

// Profile returns the user's profile.
func (s *Service) Profile(ctx context.Context, userID string) (models.User, error) {
	return s.store.Get(ctx, userID)
}

// UpdateProfile validates and stores the editable profile fields.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (models.User, error) {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return models.User{}, models.Alert("Error", "Name is required")
	case strings.TrimSpace(in.Place) == "":
		return models.User{}, models.Alert("Error", "Place is required")
	case in.Age < 1 || in.Age > 120:
		return models.User{}, models.Alert("Error", "Please enter a valid age (1-120)")
	case strings.TrimSpace(in.Gender) == "":
		return models.User{}, models.Alert("Error", "Please select gender")
	}

	user, err := s.store.Get(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	user.Name = strings.TrimSpace(in.Name)
	user.Place = strings.TrimSpace(in.Place)
	user.Age = in.Age
	user.Gender = in.Gender
	user.UpdatedAt = s.clock.Now().UnixMilli()

	if err := s.store.Update(ctx, user); err != nil {
		return models.User{}, err
	}
	s.changed(userID)
	return user, nil
}

// RegenerateCode assigns a fresh random connect code and frees the old one.
func (s *Service) RegenerateCode(ctx context.Context, userID string) (string, error) {
	ctx, span := logging.StartSpan(ctx, "accounts.regenerate_code")
	defer span.End()

	user, err := s.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return "", err
		}
		if err := s.store.Reserve(ctx, code, userID); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				continue
			}
			return "", fmt.Errorf("reserve code: %w", err)
		}

		previous := user.Code
		user.Code = code
		user.UpdatedAt = s.clock.Now().UnixMilli()
		if err := s.store.Update(ctx, user); err != nil {
			s.releaseCode(ctx, code)
			return "", err
		}
		if previous != "" {
			s.releaseCode(ctx, previous)
		}
		s.changed(userID)
		return code, nil
	}
	return "", ErrCodeTaken
}

// Directory lists every user except userID, optionally narrowed by a
// case-insensitive name/place search and an exact gender.
func (s *Service) Directory(ctx context.Context, userID, search, gender string) ([]models.User, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	search = strings.ToLower(strings.TrimSpace(search))

	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.ID == userID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) && !strings.Contains(strings.ToLower(u.Place), search) {
			continue
		}
		if gender != "" && u.Gender != gender {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// RandomUser picks one other user uniformly at random.
func (s *Service) RandomUser(ctx context.Context, userID string) (models.User, error) {
	users, err := s.Directory(ctx, userID, "", "")
	if err != nil {
		return models.User{}, err
	}
	if len(users) == 0 {
		return models.User{}, ErrNoUsers
	}
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(users))))
	if err != nil {
		return models.User{}, err
	}
	return users[idx.Int64()], nil
}

// GenerateCode returns a random six character uppercase alphanumeric code.
func GenerateCode() (string, error) {
	limit := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func validateSignUp(in SignUpInput) error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Place) == "" || in.Gender == "" ||
		strings.TrimSpace(in.Code) == "" || in.Email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return models.Alert("Missing Information", "Please fill in all fields to continue.")
	}
	if !emailPattern.MatchString(in.Email) {
		return models.Alert("Invalid Email", "Please enter a valid email address.")
	}
	if len(in.Password) < minPasswordLength {
		return models.Alert("Weak Password", "Password must be at least 6 characters long.")
	}
	if len(in.Password) > maxPasswordBytes {
		return models.Alert("Weak Password", "Password must be at most 72 bytes long.")
	}
	if in.Password != in.ConfirmPassword {
		return models.Alert("Password Mismatch", "Passwords do not match. Please check and try again.")
	}
	if len(strings.TrimSpace(in.Code)) < minCodeLength {
		return models.Alert("Invalid Code", "Connect code must be at least 3 characters long.")
	}
	if !codePattern.MatchString(strings.TrimSpace(in.Code)) {
		return models.Alert("Invalid Code", "Connect code may only contain letters and numbers.")
	}
	return nil
}

func (s *Service) releaseCode(ctx context.Context, code string) {
	if err := s.store.Release(ctx, code); err != nil {
		logging.FromContext(ctx).Error("release connect code", "code", code, "error", err)
	}
}

func (s *Service) changed(userID string) {
	if s.onChange != nil {
		s.onChange(userID)
	}
}

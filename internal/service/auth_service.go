package service

import (
	"alcyxob/fitness-booking/internal/domain"
	"alcyxob/fitness-booking/internal/repository"
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// --- Error Definitions ---
var (
	ErrUserAlreadyExists    = errors.New("user with this email already exists")
	ErrAuthenticationFailed = errors.New("authentication failed: invalid email or password")
	ErrHashingFailed        = errors.New("failed to hash password")
	ErrTokenGeneration      = errors.New("failed to generate authentication token")
	ErrRoleNotAllowed       = errors.New("role cannot be self-assigned")
)

// RegisterInput carries the fields accepted at sign-up.
type RegisterInput struct {
	Name      string
	Email     string
	Password  string
	Role      domain.Role
	Specialty string // trainers only
	Bio       string // trainers only
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (token string, user *domain.User, err error)
	// EnsureAdmin creates the bootstrap admin account if it does not exist.
	EnsureAdmin(ctx context.Context, name, email, password string) error
}

// authService implements the AuthService interface.
type authService struct {
	userRepo      repository.UserRepository
	jwtSecret     string
	jwtExpiration time.Duration
}

// NewAuthService creates a new instance of authService.
func NewAuthService(userRepo repository.UserRepository, jwtSecret string, jwtExpiration time.Duration) AuthService {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty") // Critical configuration
	}
	if jwtExpiration <= 0 {
		jwtExpiration = time.Hour
	}
	return &authService{
		userRepo:      userRepo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

// Register handles new client and trainer sign-ups. Admins are only
// created through EnsureAdmin.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	// 1. Basic Input Validation
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" || in.Password == "" || in.Role == "" {
		return nil, errors.New("name, email, password, and role cannot be empty")
	}
	if in.Role != domain.RoleClient && in.Role != domain.RoleTrainer {
		return nil, ErrRoleNotAllowed
	}

	user := &domain.User{
		Name:  in.Name,
		Email: in.Email,
		Role:  in.Role,
	}
	if in.Role == domain.RoleTrainer {
		user.Specialty = in.Specialty
		user.Bio = in.Bio
	}
	if err := s.create(ctx, user, in.Password); err != nil {
		return nil, err
	}
	return user, nil
}

// create checks for an existing email, hashes the password and stores the user.
func (s *authService) create(ctx context.Context, user *domain.User, password string) error {
	// 2. Check if user already exists
	_, err := s.userRepo.GetByEmail(ctx, user.Email)
	if err == nil {
		return ErrUserAlreadyExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	// 3. Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return ErrHashingFailed
	}
	user.PasswordHash = string(hashedPassword)

	// 4. Save; the unique email index catches a concurrent sign-up
	userID, err := s.userRepo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return ErrUserAlreadyExists
		}
		return err
	}
	user.ID = userID
	user.PasswordHash = ""
	return nil
}

// EnsureAdmin seeds the admin account once; an existing account is left alone.
func (s *authService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return errors.New("admin email and password are required")
	}
	if name == "" {
		name = "Administrator"
	}

	err := s.create(ctx, &domain.User{Name: name, Email: email, Role: domain.RoleAdmin}, password)
	if errors.Is(err, ErrUserAlreadyExists) {
		log.Printf("INFO: Admin user %s already exists", email)
		return nil
	}
	if err != nil {
		return err
	}
	log.Printf("INFO: Admin user %s seeded", email)
	return nil
}

// Login handles user authentication and JWT generation.
func (s *authService) Login(ctx context.Context, email, password string) (token string, user *domain.User, err error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		err = errors.New("email and password cannot be empty")
		return
	}

	user, err = s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = ErrAuthenticationFailed // Unknown user maps to auth failure
		}
		return
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrAuthenticationFailed
	}

	token, err = s.generateJWT(user)
	if err != nil {
		return "", nil, ErrTokenGeneration
	}

	user.PasswordHash = ""
	return token, user, nil
}

// --- JWT Helper ---

// TokenClaims is the JWT payload shared with the API middleware.
type TokenClaims struct {
	UserID string      `json:"uid"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// generateJWT creates a new JWT token for the given user.
func (s *authService) generateJWT(user *domain.User) (string, error) {
	return SignToken(s.jwtSecret, user.ID.Hex(), user.Role, s.jwtExpiration)
}

// SignToken issues an HS256 token for userID with the given role.
func SignToken(secret, userID string, role domain.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "fitness-booking",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

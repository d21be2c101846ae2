package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/manumu/auth-api/internal/domain/entity"
	"github.com/manumu/auth-api/internal/domain/repository"
	apperrors "github.com/manumu/auth-api/internal/pkg/errors"
	"github.com/manumu/auth-api/pkg/auth"
)

// AuthService handles registration and credential sign-in.
type AuthService struct {
	userRepo            repository.UserRepository
	jwtService          *auth.JWTService
	verificationService *VerificationService
}

// RegisterInput carries registration form data.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// AuthResponse carries the signed-in user and their session token.
type AuthResponse struct {
	User        *entity.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresIn   int          `json:"expires_in"`
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	jwtService *auth.JWTService,
	verificationService *VerificationService,
) (*AuthService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("UserRepository is required for AuthService")
	}
	if jwtService == nil {
		return nil, fmt.Errorf("JWTService is required for AuthService")
	}
	if verificationService == nil {
		return nil, fmt.Errorf("VerificationService is required for AuthService")
	}

	return &AuthService{
		userRepo:            userRepo,
		jwtService:          jwtService,
		verificationService: verificationService,
	}, nil
}

// RegisterUser creates an unverified user and issues their first verification
// token. If token issuance or delivery fails after the user row was created,
// the error propagates and the caller surfaces a generic failure; the user
// exists unverified with no token and the resend flow recovers that state.
func (s *AuthService) RegisterUser(ctx context.Context, input RegisterInput) (*entity.User, error) {
	input.Email = normalizeEmail(input.Email)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)

	_, err := s.userRepo.GetByEmail(input.Email)
	if err == nil {
		return nil, fmt.Errorf("%w: user with this email already exists", apperrors.ErrConflict)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}

	name := strings.TrimSpace(input.FirstName + " " + input.LastName)

	user := &entity.User{
		Name:     name,
		Email:    input.Email,
		Password: input.Password, // hashed by the BeforeSave hook
		Role:     "USER",
	}
	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("%w: user with this email already exists", apperrors.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[AuthService] User ID=%d (%s) registered", user.ID, user.Email)

	if err := s.verificationService.IssueAndSend(ctx, user.Email, user.Name); err != nil {
		return nil, fmt.Errorf("failed to send verification email after registration: %w", err)
	}

	return user, nil
}

// AuthenticateUser checks credentials without creating a session. A missing
// user, an OAuth-only account and a wrong password all collapse into the same
// invalid-credentials error. An unverified email fails with the distinct
// ErrEmailNotVerified only after the password has been validated.
func (s *AuthService) AuthenticateUser(email, password string) (*entity.User, error) {
	email = normalizeEmail(email)

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
		}
		return nil, err
	}

	if !user.HasPassword() || !user.CheckPassword(password) {
		log.Printf("[AuthService] Invalid password for email %s", email)
		return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}

	if !user.IsVerified() {
		return nil, ErrEmailNotVerified
	}

	return user, nil
}

// LoginUser authenticates the user and issues a session token.
func (s *AuthService) LoginUser(email, password string) (*AuthResponse, error) {
	user, err := s.AuthenticateUser(email, password)
	if err != nil {
		return nil, err
	}

	token, err := s.jwtService.GenerateToken(user)
	if err != nil {
		log.Printf("[AuthService] Failed to generate session token for user ID=%d: %v", user.ID, err)
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	log.Printf("[AuthService] User ID=%d (%s) signed in", user.ID, user.Email)
	return &AuthResponse{
		User:        user,
		AccessToken: token,
		ExpiresIn:   int(s.jwtService.Expiry().Seconds()),
	}, nil
}

// IssueSession signs a session token for an already-authenticated user
// (OAuth callback path).
func (s *AuthService) IssueSession(user *entity.User) (*AuthResponse, error) {
	token, err := s.jwtService.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	return &AuthResponse{
		User:        user,
		AccessToken: token,
		ExpiresIn:   int(s.jwtService.Expiry().Seconds()),
	}, nil
}

// GetUserByID returns a user by ID.
func (s *AuthService) GetUserByID(userID uint) (*entity.User, error) {
	return s.userRepo.GetByID(userID)
}

// UpdateUserProfile updates the user's display name and image.
func (s *AuthService) UpdateUserProfile(userID uint, name, image string) error {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return fmt.Errorf("%w: name must be at least 2 characters", apperrors.ErrValidation)
	}

	updates := map[string]interface{}{
		"name":  name,
		"image": image,
	}
	return s.userRepo.UpdateProfile(userID, updates)
}

// normalizeEmail lowercases and trims an email address.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

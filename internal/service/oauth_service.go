package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/manumu/auth-api/internal/config"
	"github.com/manumu/auth-api/internal/domain/entity"
	"github.com/manumu/auth-api/internal/domain/repository"
	apperrors "github.com/manumu/auth-api/internal/pkg/errors"
)

const (
	GoogleProvider = "google"
	GithubProvider = "github"
)

// ProviderUserInfo is the normalized shape of a provider's userinfo response.
type ProviderUserInfo struct {
	Sub     string
	Email   string
	Name    string
	Picture string
}

// OAuthService runs the authorization-code flow for Google and GitHub and
// maps provider accounts onto local users via UserIdentity links.
type OAuthService struct {
	userRepo     repository.UserRepository
	identityRepo repository.UserIdentityRepository
	providers    map[string]*oauth2.Config
	httpClient   *http.Client

	// Userinfo endpoints, overridable in tests.
	googleUserInfoURL string
	githubUserInfoURL string
	githubEmailsURL   string
}

// NewOAuthService creates an OAuth service. Providers without configured
// credentials are simply absent; their routes answer with
// ErrOAuthProviderDisabled.
func NewOAuthService(
	userRepo repository.UserRepository,
	identityRepo repository.UserIdentityRepository,
	cfg config.OAuthConfig,
	appURL string,
) (*OAuthService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if identityRepo == nil {
		return nil, fmt.Errorf("identity repository is required")
	}

	appURL = strings.TrimRight(appURL, "/")
	providers := make(map[string]*oauth2.Config)

	if cfg.Google.Enabled() {
		providers[GoogleProvider] = &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  appURL + "/api/auth/oauth/google/callback",
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		}
	}
	if cfg.GitHub.Enabled() {
		providers[GithubProvider] = &oauth2.Config{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			RedirectURL:  appURL + "/api/auth/oauth/github/callback",
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}
	}

	return &OAuthService{
		userRepo:          userRepo,
		identityRepo:      identityRepo,
		providers:         providers,
		httpClient:        &http.Client{Timeout: 10 * time.Second},
		googleUserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		githubUserInfoURL: "https://api.github.com/user",
		githubEmailsURL:   "https://api.github.com/user/emails",
	}, nil
}

// ProviderEnabled reports whether the provider has credentials configured.
func (s *OAuthService) ProviderEnabled(provider string) bool {
	_, ok := s.providers[provider]
	return ok
}

// AuthCodeURL builds the provider consent-screen URL for the given state.
func (s *OAuthService) AuthCodeURL(provider, state string) (string, error) {
	conf, ok := s.providers[provider]
	if !ok {
		return "", ErrOAuthProviderDisabled
	}
	return conf.AuthCodeURL(state), nil
}

// HandleCallback exchanges the authorization code, fetches the provider's
// userinfo and resolves it to a local user:
//
//  1. an existing (provider, sub) identity signs in its linked user;
//  2. otherwise an existing user with the same normalized email gets the
//     identity linked (email-based auto-linking, matching the original
//     application behavior);
//  3. otherwise a new user is created with email_verified_at set — the
//     provider has already verified ownership of the address.
func (s *OAuthService) HandleCallback(ctx context.Context, provider, code string) (*entity.User, error) {
	conf, ok := s.providers[provider]
	if !ok {
		return nil, ErrOAuthProviderDisabled
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %v", apperrors.ErrUnauthorized, err)
	}

	info, err := s.fetchUserInfo(ctx, provider, token)
	if err != nil {
		return nil, err
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("%w: provider returned no subject", apperrors.ErrUnauthorized)
	}

	identity, err := s.identityRepo.GetByProviderSub(provider, info.Sub)
	if err == nil {
		return s.userRepo.GetByID(identity.UserID)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	email := normalizeEmail(info.Email)
	if email == "" {
		return nil, ErrOAuthEmailMissing
	}

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		now := time.Now()
		user = &entity.User{
			Name:            strings.TrimSpace(info.Name),
			Email:           email,
			Image:           info.Picture,
			Role:            "USER",
			EmailVerifiedAt: &now,
		}
		if err := s.userRepo.Create(user); err != nil {
			return nil, fmt.Errorf("failed to create user from %s sign-in: %w", provider, err)
		}
		log.Printf("[OAuthService] Created user ID=%d (%s) via %s", user.ID, user.Email, provider)
	}

	link := &entity.UserIdentity{
		UserID:        user.ID,
		Provider:      provider,
		ProviderSub:   info.Sub,
		ProviderEmail: email,
	}
	if err := s.identityRepo.Create(link); err != nil && !errors.Is(err, apperrors.ErrConflict) {
		return nil, fmt.Errorf("failed to link %s identity: %w", provider, err)
	}

	return user, nil
}

func (s *OAuthService) fetchUserInfo(ctx context.Context, provider string, token *oauth2.Token) (*ProviderUserInfo, error) {
	switch provider {
	case GoogleProvider:
		return s.fetchGoogleUserInfo(ctx, token)
	case GithubProvider:
		return s.fetchGithubUserInfo(ctx, token)
	default:
		return nil, ErrOAuthProviderDisabled
	}
}

func (s *OAuthService) fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*ProviderUserInfo, error) {
	data, err := s.getJSON(ctx, s.googleUserInfoURL, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get google userinfo: %w", err)
	}

	var payload struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse google userinfo: %w", err)
	}

	return &ProviderUserInfo{
		Sub:     payload.ID,
		Email:   payload.Email,
		Name:    payload.Name,
		Picture: payload.Picture,
	}, nil
}

func (s *OAuthService) fetchGithubUserInfo(ctx context.Context, token *oauth2.Token) (*ProviderUserInfo, error) {
	data, err := s.getJSON(ctx, s.githubUserInfoURL, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get github user: %w", err)
	}

	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse github user: %w", err)
	}

	info := &ProviderUserInfo{
		Sub:     fmt.Sprintf("%d", payload.ID),
		Email:   payload.Email,
		Name:    payload.Name,
		Picture: payload.AvatarURL,
	}
	if info.Name == "" {
		info.Name = payload.Login
	}

	// The public profile email is often empty; fall back to the primary
	// verified address from /user/emails.
	if info.Email == "" {
		email, err := s.fetchGithubPrimaryEmail(ctx, token)
		if err != nil {
			return nil, err
		}
		info.Email = email
	}

	return info, nil
}

func (s *OAuthService) fetchGithubPrimaryEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	data, err := s.getJSON(ctx, s.githubEmailsURL, token.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to get github emails: %w", err)
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.Unmarshal(data, &emails); err != nil {
		return "", fmt.Errorf("failed to parse github emails: %w", err)
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

func (s *OAuthService) getJSON(ctx context.Context, url, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

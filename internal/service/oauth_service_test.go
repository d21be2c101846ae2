package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/manumu/auth-api/internal/config"
	"github.com/manumu/auth-api/internal/domain/entity"
	apperrors "github.com/manumu/auth-api/internal/pkg/errors"
)

// MockUserIdentityRepo implements repository.UserIdentityRepository
type MockUserIdentityRepo struct {
	mock.Mock
}

func (m *MockUserIdentityRepo) Create(identity *entity.UserIdentity) error {
	args := m.Called(identity)
	return args.Error(0)
}

func (m *MockUserIdentityRepo) GetByProviderSub(provider, sub string) (*entity.UserIdentity, error) {
	args := m.Called(provider, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.UserIdentity), args.Error(1)
}

func testOAuthConfig() config.OAuthConfig {
	return config.OAuthConfig{
		Google: config.OAuthProviderConfig{ClientID: "google-client", ClientSecret: "google-secret"},
		GitHub: config.OAuthProviderConfig{ClientID: "github-client", ClientSecret: "github-secret"},
	}
}

func createTestOAuthService(t *testing.T, userRepo *MockUserRepo, identityRepo *MockUserIdentityRepo, cfg config.OAuthConfig) *OAuthService {
	t.Helper()
	svc, err := NewOAuthService(userRepo, identityRepo, cfg, "https://app.example.com")
	require.NoError(t, err)
	return svc
}

func TestOAuthService_ProviderEnabled(t *testing.T) {
	svc := createTestOAuthService(t, new(MockUserRepo), new(MockUserIdentityRepo), config.OAuthConfig{
		Google: config.OAuthProviderConfig{ClientID: "google-client", ClientSecret: "google-secret"},
		// GitHub left unconfigured
	})

	assert.True(t, svc.ProviderEnabled(GoogleProvider))
	assert.False(t, svc.ProviderEnabled(GithubProvider))
	assert.False(t, svc.ProviderEnabled("gitlab"))
}

func TestOAuthService_AuthCodeURL(t *testing.T) {
	svc := createTestOAuthService(t, new(MockUserRepo), new(MockUserIdentityRepo), testOAuthConfig())

	url, err := svc.AuthCodeURL(GoogleProvider, "random-state")

	require.NoError(t, err)
	assert.Contains(t, url, "client_id=google-client")
	assert.Contains(t, url, "state=random-state")
	assert.Contains(t, url, "redirect_uri=")
	assert.Contains(t, url, "oauth2%2Fgoogle%2Fcallback")
}

func TestOAuthService_AuthCodeURL_DisabledProvider(t *testing.T) {
	svc := createTestOAuthService(t, new(MockUserRepo), new(MockUserIdentityRepo), config.OAuthConfig{})

	_, err := svc.AuthCodeURL(GoogleProvider, "state")

	assert.ErrorIs(t, err, ErrOAuthProviderDisabled)
}

func TestOAuthService_FetchGithubUserInfo_EmailFallback(t *testing.T) {
	// The public profile carries no email; the primary verified address from
	// /user/emails fills the gap.
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer github-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id": 12345, "login": "octocat", "name": "", "email": "", "avatar_url": "https://example.com/a.png"}`)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"email": "secondary@example.com", "primary": false, "verified": true},
			{"email": "primary@example.com", "primary": true, "verified": true}
		]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := createTestOAuthService(t, new(MockUserRepo), new(MockUserIdentityRepo), testOAuthConfig())
	svc.githubUserInfoURL = srv.URL + "/user"
	svc.githubEmailsURL = srv.URL + "/user/emails"

	info, err := svc.fetchGithubUserInfo(context.Background(), &oauth2.Token{AccessToken: "github-token"})

	require.NoError(t, err)
	assert.Equal(t, "12345", info.Sub)
	assert.Equal(t, "primary@example.com", info.Email)
	assert.Equal(t, "octocat", info.Name, "login stands in for an empty display name")
	assert.Equal(t, "https://example.com/a.png", info.Picture)
}

func TestOAuthService_FetchGoogleUserInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer google-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id": "sub-123", "email": "test@example.com", "name": "Test User", "picture": "https://example.com/p.png"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := createTestOAuthService(t, new(MockUserRepo), new(MockUserIdentityRepo), testOAuthConfig())
	svc.googleUserInfoURL = srv.URL + "/userinfo"

	info, err := svc.fetchGoogleUserInfo(context.Background(), &oauth2.Token{AccessToken: "google-token"})

	require.NoError(t, err)
	assert.Equal(t, "sub-123", info.Sub)
	assert.Equal(t, "test@example.com", info.Email)
	assert.Equal(t, "Test User", info.Name)
}

// oauthCallbackFixture wires a fake provider (token + userinfo endpoints) into
// an OAuthService so HandleCallback can run end to end.
func oauthCallbackFixture(t *testing.T, userRepo *MockUserRepo, identityRepo *MockUserIdentityRepo) (*OAuthService, func()) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "google-token", "token_type": "bearer"}`)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "sub-123", "email": "OAuth.User@Example.com", "name": "OAuth User", "picture": "https://example.com/p.png"}`)
	})
	srv := httptest.NewServer(mux)

	svc := createTestOAuthService(t, userRepo, identityRepo, testOAuthConfig())
	svc.providers[GoogleProvider].Endpoint = oauth2.Endpoint{
		AuthURL:  srv.URL + "/auth",
		TokenURL: srv.URL + "/token",
	}
	svc.googleUserInfoURL = srv.URL + "/userinfo"

	return svc, srv.Close
}

func TestOAuthService_HandleCallback_ExistingIdentity(t *testing.T) {
	userRepo := new(MockUserRepo)
	identityRepo := new(MockUserIdentityRepo)
	svc, closeSrv := oauthCallbackFixture(t, userRepo, identityRepo)
	defer closeSrv()

	identityRepo.On("GetByProviderSub", GoogleProvider, "sub-123").Return(&entity.UserIdentity{
		ID:          1,
		UserID:      42,
		Provider:    GoogleProvider,
		ProviderSub: "sub-123",
	}, nil)
	userRepo.On("GetByID", uint(42)).Return(&entity.User{ID: 42, Email: "oauth.user@example.com"}, nil)

	user, err := svc.HandleCallback(context.Background(), GoogleProvider, "auth-code")

	require.NoError(t, err)
	assert.Equal(t, uint(42), user.ID)
	userRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestOAuthService_HandleCallback_LinksExistingUserByEmail(t *testing.T) {
	userRepo := new(MockUserRepo)
	identityRepo := new(MockUserIdentityRepo)
	svc, closeSrv := oauthCallbackFixture(t, userRepo, identityRepo)
	defer closeSrv()

	identityRepo.On("GetByProviderSub", GoogleProvider, "sub-123").Return(nil, apperrors.ErrNotFound)
	userRepo.On("GetByEmail", "oauth.user@example.com").Return(&entity.User{
		ID:    7,
		Email: "oauth.user@example.com",
	}, nil)
	identityRepo.On("Create", mock.AnythingOfType("*entity.UserIdentity")).Return(nil)

	user, err := svc.HandleCallback(context.Background(), GoogleProvider, "auth-code")

	require.NoError(t, err)
	assert.Equal(t, uint(7), user.ID)
	userRepo.AssertNotCalled(t, "Create", mock.Anything)
	identityRepo.AssertCalled(t, "Create", mock.MatchedBy(func(link *entity.UserIdentity) bool {
		return link.UserID == 7 && link.Provider == GoogleProvider && link.ProviderSub == "sub-123"
	}))
}

func TestOAuthService_HandleCallback_CreatesVerifiedUser(t *testing.T) {
	userRepo := new(MockUserRepo)
	identityRepo := new(MockUserIdentityRepo)
	svc, closeSrv := oauthCallbackFixture(t, userRepo, identityRepo)
	defer closeSrv()

	identityRepo.On("GetByProviderSub", GoogleProvider, "sub-123").Return(nil, apperrors.ErrNotFound)
	userRepo.On("GetByEmail", "oauth.user@example.com").Return(nil, apperrors.ErrNotFound)
	userRepo.On("Create", mock.AnythingOfType("*entity.User")).
		Run(func(args mock.Arguments) {
			args.Get(0).(*entity.User).ID = 8
		}).
		Return(nil)
	identityRepo.On("Create", mock.AnythingOfType("*entity.UserIdentity")).Return(nil)

	user, err := svc.HandleCallback(context.Background(), GoogleProvider, "auth-code")

	require.NoError(t, err)
	assert.Equal(t, uint(8), user.ID)
	assert.Equal(t, "oauth.user@example.com", user.Email, "provider email must be stored normalized")
	assert.True(t, user.IsVerified(), "provider-vouched email skips the verification gate")
	assert.Equal(t, "USER", user.Role)
}

func TestOAuthService_HandleCallback_IdentityConflictIsBenign(t *testing.T) {
	// Two concurrent callbacks may race on the identity insert; the loser's
	// unique violation must not fail the sign-in.
	userRepo := new(MockUserRepo)
	identityRepo := new(MockUserIdentityRepo)
	svc, closeSrv := oauthCallbackFixture(t, userRepo, identityRepo)
	defer closeSrv()

	identityRepo.On("GetByProviderSub", GoogleProvider, "sub-123").Return(nil, apperrors.ErrNotFound)
	userRepo.On("GetByEmail", "oauth.user@example.com").Return(&entity.User{
		ID:    7,
		Email: "oauth.user@example.com",
	}, nil)
	identityRepo.On("Create", mock.AnythingOfType("*entity.UserIdentity")).Return(apperrors.ErrConflict)

	user, err := svc.HandleCallback(context.Background(), GoogleProvider, "auth-code")

	require.NoError(t, err)
	assert.Equal(t, uint(7), user.ID)
}

func TestOAuthService_HandleCallback_DisabledProvider(t *testing.T) {
	svc := createTestOAuthService(t, new(MockUserRepo), new(MockUserIdentityRepo), config.OAuthConfig{})

	_, err := svc.HandleCallback(context.Background(), GoogleProvider, "auth-code")

	assert.ErrorIs(t, err, ErrOAuthProviderDisabled)
}

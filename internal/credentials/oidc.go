package credentials

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"

	"guildchat-backend/internal/apperrors"
	"guildchat-backend/internal/models"
)

const (
	minUsernameLength = 6
	maxUsernameLength = 20
	usernameAttempts  = 5
)

var usernameDisallowed = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// IdentityClaims are the ID token claims used to find or create an account.
type IdentityClaims struct {
	Email             string `json:"email"`
	EmailVerified     *bool  `json:"email_verified"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
}

// TokenVerifier checks a raw ID token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*IdentityClaims, error)
}

type oidcVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func (v *oidcVerifier) Verify(ctx context.Context, rawIDToken string) (*IdentityClaims, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}

	var claims IdentityClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// provider discovery is a network round trip, so verifiers are built on first use
type verifierCache struct {
	mutex     sync.Mutex
	verifiers map[string]TokenVerifier
}

func newVerifierCache() *verifierCache {
	return &verifierCache{verifiers: make(map[string]TokenVerifier)}
}

func (c *verifierCache) get(ctx context.Context, provider models.OIDCProvider) (TokenVerifier, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if verifier, ok := c.verifiers[provider.Name]; ok {
		return verifier, nil
	}

	discovered, err := oidc.NewProvider(ctx, provider.ProviderURL)
	if err != nil {
		return nil, fmt.Errorf("discovering OIDC provider %s: %w", provider.Name, err)
	}

	verifier := &oidcVerifier{verifier: discovered.Verifier(&oidc.Config{ClientID: provider.ClientID})}
	c.verifiers[provider.Name] = verifier
	return verifier, nil
}

func (c *verifierCache) set(name string, verifier TokenVerifier) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.verifiers[name] = verifier
}

// LoginWithOIDC logs in with an ID token of a configured provider. Unknown emails get a
// new password-less account, known ones need the email_verified claim.
func (s *Service) LoginWithOIDC(ctx context.Context, providerName string, rawIDToken string) (*Session, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, apperrors.Validation(fmt.Sprintf("Unknown identity provider: %s", providerName))
	}
	if rawIDToken == "" {
		return nil, apperrors.Unauthenticated("ID token is missing")
	}

	verifier, err := s.verifiers.get(ctx, provider)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	claims, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		s.sugar.Debug(err)
		return nil, apperrors.Unauthenticated("Invalid ID token")
	}
	if claims.Email == "" {
		return nil, apperrors.Unauthenticated("ID token has no email")
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, apperrors.Unauthenticated("Email is not verified by the identity provider")
	}

	user, err := s.users.GetByEmail(ctx, claims.Email)
	switch {
	case apperrors.KindOf(err) == apperrors.KindNotFound:
		user, err = s.createOIDCUser(ctx, claims)
	case err == nil && claims.EmailVerified == nil:
		// an existing account is only reached through an email the provider vouches for
		s.sugar.Debugf("OIDC login for existing user ID [%d] without email_verified", user.ID)
		return nil, apperrors.Unauthenticated("Email is not verified by the identity provider")
	}
	if err != nil {
		return nil, err
	}

	return s.issue(user)
}

func (s *Service) createOIDCUser(ctx context.Context, claims *IdentityClaims) (*models.User, error) {
	base := claims.PreferredUsername
	if base == "" {
		base, _, _ = strings.Cut(claims.Email, "@")
	}
	base = baseUsername(base)

	candidate := base
	for attempt := 0; attempt < usernameAttempts; attempt++ {
		taken, err := s.users.UsernameTaken(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if !taken {
			user := &models.User{
				UserName:    candidate,
				Email:       claims.Email,
				DisplayName: truncate(claims.Name, 32),
				Role:        models.RoleUser,
			}
			if err := s.users.Create(ctx, user); err != nil {
				return nil, err
			}
			s.sugar.Infof("Created user [%s] with ID [%d] from OIDC login", user.UserName, user.ID)
			return user, nil
		}

		suffix, err := randomDigits(4)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		candidate = truncate(base, maxUsernameLength-len(suffix)) + suffix
	}

	return nil, apperrors.Conflict("Couldn't find a free username")
}

// baseUsername turns any display string into something that passes username validation.
func baseUsername(s string) string {
	s = usernameDisallowed.ReplaceAllString(s, "")
	s = truncate(s, maxUsernameLength)
	for len(s) < minUsernameLength {
		s += "_"
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func randomDigits(n int) (string, error) {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		digit, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		sb.WriteString(digit.String())
	}
	return sb.String(), nil
}

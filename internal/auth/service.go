package auth

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	"github.com/frahmantamala/custody-ledger/internal/core/common/validation"
	"github.com/frahmantamala/custody-ledger/internal/member"
)

// MemberLookup finds members; both methods return nil, nil when nothing matches.
type MemberLookup interface {
	FindMember(ctx context.Context, id string) (*member.Member, error)
	FindByEmail(ctx context.Context, email string) (*member.Member, error)
}

type TokenGenerator interface {
	Generate(userID, companyID string, t TokenType) (string, time.Time, error)
	Validate(tokenString string, t TokenType) (*Claims, error)
}

type Service struct {
	members     MemberLookup
	tokens      TokenGenerator
	revocations RevocationList
	logger      *slog.Logger
	dummyHash   []byte
}

func NewService(members MemberLookup, tokens TokenGenerator, revocations RevocationList, logger *slog.Logger) *Service {
	if revocations == nil {
		revocations = NoRevocation{}
	}
	// Compared against when the email is unknown so both paths cost a bcrypt round.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return &Service{members: members, tokens: tokens, revocations: revocations, logger: logger, dummyHash: dummy}
}

func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if err := validation.Struct(dto); err != nil {
		return AuthTokens{}, err
	}

	m, err := s.members.FindByEmail(ctx, dto.Email)
	if err != nil {
		return AuthTokens{}, err
	}
	if m == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(dto.Password))
		s.logger.Warn("login failed", "reason", "unknown email")
		return AuthTokens{}, apperrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(dto.Password)); err != nil {
		s.logger.Warn("login failed", "reason", "bad password", "user_id", m.ID)
		return AuthTokens{}, apperrors.ErrInvalidCredentials
	}
	if !m.IsActive {
		return AuthTokens{}, apperrors.ErrUserInactive
	}

	s.logger.Info("login succeeded", "user_id", m.ID, "company_id", m.CompanyID)
	return s.issue(m)
}

// RefreshTokens rotates the pair. The presented refresh token is revoked.
func (s *Service) RefreshTokens(ctx context.Context, dto RefreshTokenDTO) (AuthTokens, error) {
	if err := validation.Struct(dto); err != nil {
		return AuthTokens{}, err
	}
	claims, err := s.checkToken(ctx, dto.RefreshToken, RefreshToken)
	if err != nil {
		return AuthTokens{}, err
	}
	m, err := s.activeMember(ctx, claims.UserID)
	if err != nil {
		return AuthTokens{}, err
	}
	s.revoke(ctx, claims)
	return s.issue(m)
}

// Logout revokes the access token and, when given, the refresh token.
func (s *Service) Logout(ctx context.Context, accessToken string, dto LogoutDTO) error {
	claims, err := s.checkToken(ctx, accessToken, AccessToken)
	if err != nil {
		return err
	}
	s.revoke(ctx, claims)
	if dto.RefreshToken != "" {
		if rc, err := s.tokens.Validate(dto.RefreshToken, RefreshToken); err == nil && rc.UserID == claims.UserID {
			s.revoke(ctx, rc)
		}
	}
	s.logger.Info("logout", "user_id", claims.UserID)
	return nil
}

// ActorForToken resolves a bearer access token to the current member as an authz.Actor.
func (s *Service) ActorForToken(ctx context.Context, token string) (authz.Actor, error) {
	claims, err := s.checkToken(ctx, token, AccessToken)
	if err != nil {
		return authz.Actor{}, err
	}
	m, err := s.activeMember(ctx, claims.UserID)
	if err != nil {
		return authz.Actor{}, err
	}
	if m.CompanyID != claims.CompanyID {
		return authz.Actor{}, apperrors.ErrInvalidToken
	}
	return m.Actor(), nil
}

func (s *Service) checkToken(ctx context.Context, token string, t TokenType) (*Claims, error) {
	if token == "" {
		return nil, apperrors.ErrInvalidToken
	}
	claims, err := s.tokens.Validate(token, t)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("revocation lookup failed", "error", err)
		return nil, apperrors.NewInternalError("token check unavailable", err)
	}
	if revoked {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) activeMember(ctx context.Context, id string) (*member.Member, error) {
	m, err := s.members.FindMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperrors.ErrInvalidToken
	}
	if !m.IsActive {
		return nil, apperrors.ErrUserInactive
	}
	return m, nil
}

func (s *Service) revoke(ctx context.Context, c *Claims) {
	if c.ExpiresAt == nil {
		return
	}
	if err := s.revocations.Revoke(ctx, c.ID, time.Until(c.ExpiresAt.Time)); err != nil {
		s.logger.Error("failed to revoke token", "user_id", c.UserID, "error", err)
	}
}

func (s *Service) issue(m *member.Member) (AuthTokens, error) {
	access, expiresAt, err := s.tokens.Generate(m.ID, m.CompanyID, AccessToken)
	if err != nil {
		return AuthTokens{}, apperrors.NewInternalError("failed to sign token", err)
	}
	refresh, _, err := s.tokens.Generate(m.ID, m.CompanyID, RefreshToken)
	if err != nil {
		return AuthTokens{}, apperrors.NewInternalError("failed to sign token", err)
	}
	return AuthTokens{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

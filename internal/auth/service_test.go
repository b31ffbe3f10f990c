package auth_test

import (
	"context"
	"errors"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/auth"
	"github.com/frahmantamala/custody-ledger/internal/authz"
	memberdm "github.com/frahmantamala/custody-ledger/internal/core/datamodel/member"
	"github.com/frahmantamala/custody-ledger/internal/core/dbtest"
	"github.com/frahmantamala/custody-ledger/internal/member"
	"github.com/frahmantamala/custody-ledger/internal/member/postgres"
	"github.com/frahmantamala/custody-ledger/pkg/logger"
)

const (
	accessSecret  = "access-secret-access-secret-0123456789"
	refreshSecret = "refresh-secret-refresh-secret-0123456789"
)

var _ = Describe("JWTTokenGenerator", func() {
	var gen *auth.JWTTokenGenerator

	BeforeEach(func() {
		gen = auth.NewJWTTokenGenerator(accessSecret, refreshSecret, time.Minute, time.Hour)
	})

	It("round-trips an access token", func() {
		tok, exp, err := gen.Generate("u-1", "co-1", auth.AccessToken)
		Expect(err).NotTo(HaveOccurred())
		Expect(exp).To(BeTemporally("~", time.Now().Add(time.Minute), 2*time.Second))

		claims, err := gen.Validate(tok, auth.AccessToken)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.UserID).To(Equal("u-1"))
		Expect(claims.CompanyID).To(Equal("co-1"))
		Expect(claims.ID).NotTo(BeEmpty())
	})

	It("does not accept a refresh token as an access token", func() {
		tok, _, err := gen.Generate("u-1", "co-1", auth.RefreshToken)
		Expect(err).NotTo(HaveOccurred())
		_, err = gen.Validate(tok, auth.AccessToken)
		Expect(errors.Is(err, apperrors.ErrInvalidToken)).To(BeTrue())
	})

	It("reports expired tokens", func() {
		claims := &auth.Claims{
			UserID: "u-1",
			Type:   auth.AccessToken,
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        "old",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(accessSecret))
		Expect(err).NotTo(HaveOccurred())
		_, err = gen.Validate(tok, auth.AccessToken)
		Expect(errors.Is(err, apperrors.ErrTokenExpired)).To(BeTrue())
	})

	It("rejects garbage and foreign signatures", func() {
		_, err := gen.Validate("not-a-token", auth.AccessToken)
		Expect(errors.Is(err, apperrors.ErrInvalidToken)).To(BeTrue())

		other := auth.NewJWTTokenGenerator("another-access-secret-0123456789xx", refreshSecret, time.Minute, time.Hour)
		tok, _, _ := other.Generate("u-1", "co-1", auth.AccessToken)
		_, err = gen.Validate(tok, auth.AccessToken)
		Expect(errors.Is(err, apperrors.ErrInvalidToken)).To(BeTrue())
	})
})

var _ = Describe("Auth Service", func() {
	var (
		ctx     context.Context
		db      *gorm.DB
		mr      *miniredis.Miniredis
		service *auth.Service
		alice   *memberdm.Member
	)

	setPassword := func(m *memberdm.Member, password string) {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		Expect(db.Model(m).Update("password_hash", string(hash)).Error).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = dbtest.Open()
		Expect(err).NotTo(HaveOccurred())
		fx := dbtest.Fixtures{DB: db}
		co := fx.Company("Acme")
		alice = fx.Member(co.ID, "accountant")
		setPassword(alice, "correct horse")

		mr = miniredis.RunT(GinkgoT())
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)

		members := member.NewService(postgres.NewMemberRepository(db), bcrypt.MinCost, logger.Discard())
		gen := auth.NewJWTTokenGenerator(accessSecret, refreshSecret, time.Minute, time.Hour)
		service = auth.NewService(members, gen, auth.NewRedisRevocationList(client), logger.Discard())
	})

	login := func() auth.AuthTokens {
		tokens, err := service.Authenticate(ctx, auth.LoginDTO{Email: alice.Email, Password: "correct horse"})
		Expect(err).NotTo(HaveOccurred())
		return tokens
	}

	It("logs in and resolves the actor from the access token", func() {
		tokens := login()
		Expect(tokens.TokenType).To(Equal("Bearer"))

		actor, err := service.ActorForToken(ctx, tokens.AccessToken)
		Expect(err).NotTo(HaveOccurred())
		Expect(actor.UserID).To(Equal(alice.ID))
		Expect(actor.CompanyID).To(Equal(alice.CompanyID))
		Expect(actor.Role).To(Equal(authz.RoleAccountant))
	})

	It("rejects wrong passwords and unknown emails alike", func() {
		_, err := service.Authenticate(ctx, auth.LoginDTO{Email: alice.Email, Password: "wrong"})
		Expect(errors.Is(err, apperrors.ErrInvalidCredentials)).To(BeTrue())

		_, err = service.Authenticate(ctx, auth.LoginDTO{Email: "nobody@example.com", Password: "correct horse"})
		Expect(errors.Is(err, apperrors.ErrInvalidCredentials)).To(BeTrue())
	})

	It("validates the login body", func() {
		_, err := service.Authenticate(ctx, auth.LoginDTO{Email: "not-an-email"})
		appErr, ok := apperrors.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(apperrors.ErrCodeValidationFailed))
	})

	It("refuses inactive members", func() {
		Expect(db.Model(alice).Update("is_active", false).Error).To(Succeed())
		_, err := service.Authenticate(ctx, auth.LoginDTO{Email: alice.Email, Password: "correct horse"})
		Expect(errors.Is(err, apperrors.ErrUserInactive)).To(BeTrue())
	})

	It("picks up role changes without a new token", func() {
		tokens := login()
		Expect(db.Model(alice).Update("role", "employee").Error).To(Succeed())

		actor, err := service.ActorForToken(ctx, tokens.AccessToken)
		Expect(err).NotTo(HaveOccurred())
		Expect(actor.Role).To(Equal(authz.RoleEmployee))
	})

	It("rotates refresh tokens once", func() {
		tokens := login()
		next, err := service.RefreshTokens(ctx, auth.RefreshTokenDTO{RefreshToken: tokens.RefreshToken})
		Expect(err).NotTo(HaveOccurred())
		Expect(next.AccessToken).NotTo(BeEmpty())

		_, err = service.RefreshTokens(ctx, auth.RefreshTokenDTO{RefreshToken: tokens.RefreshToken})
		Expect(errors.Is(err, apperrors.ErrInvalidToken)).To(BeTrue())
	})

	It("revokes tokens on logout", func() {
		tokens := login()
		Expect(service.Logout(ctx, tokens.AccessToken, auth.LogoutDTO{RefreshToken: tokens.RefreshToken})).To(Succeed())

		_, err := service.ActorForToken(ctx, tokens.AccessToken)
		Expect(errors.Is(err, apperrors.ErrInvalidToken)).To(BeTrue())
		_, err = service.RefreshTokens(ctx, auth.RefreshTokenDTO{RefreshToken: tokens.RefreshToken})
		Expect(errors.Is(err, apperrors.ErrInvalidToken)).To(BeTrue())

		Expect(mr.Keys()).To(HaveLen(2))
	})

	It("fails closed when the revocation store is down", func() {
		tokens := login()
		mr.Close()
		_, err := service.ActorForToken(ctx, tokens.AccessToken)
		appErr, ok := apperrors.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(500))
	})
})

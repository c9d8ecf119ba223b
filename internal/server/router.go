package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/solstice-labs/authbridge/internal/auth"
	"github.com/solstice-labs/authbridge/internal/users"
	"go.uber.org/zap"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "token"

const (
	sessionCookieMaxAge = int(auth.SessionTokenLifetime / time.Second)
	userIDContextKey    = "authbridge_user_id"
	userEmailContextKey = "authbridge_user_email"
)

var (
	errMissingProvider    = errors.New("identity provider dependency required")
	errMissingCodec       = errors.New("session codec dependency required")
	errMissingUserService = errors.New("user service dependency required")
	errMissingFrontendURL = errors.New("front-end redirect url required")
)

// IdentityProvider abstracts the external OAuth2 provider.
type IdentityProvider interface {
	LoginURL(state string) string
	Exchange(ctx context.Context, code string) (auth.ExternalIdentity, error)
}

// SessionCodec mints and verifies session tokens.
type SessionCodec interface {
	Mint(userID string, email string) (string, error)
	Verify(token string) (auth.SessionClaims, error)
}

// UserResolver finds or creates the account behind a provider identity.
type UserResolver interface {
	Resolve(ctx context.Context, identity auth.ExternalIdentity) (users.User, error)
}

// Dependencies bundles the collaborators wired into the HTTP handler.
type Dependencies struct {
	Provider      IdentityProvider
	Sessions      SessionCodec
	Users         UserResolver
	FrontendURL   string
	SecureCookies bool
	Logger        *zap.Logger
}

// NewHTTPHandler builds the versioned router with the login, callback and
// session-protected routes mounted.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Provider == nil {
		return nil, errMissingProvider
	}
	if deps.Sessions == nil {
		return nil, errMissingCodec
	}
	if deps.Users == nil {
		return nil, errMissingUserService
	}
	if strings.TrimSpace(deps.FrontendURL) == "" {
		return nil, errMissingFrontendURL
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{deps.FrontendURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler := &httpHandler{
		provider:      deps.Provider,
		sessions:      deps.Sessions,
		users:         deps.Users,
		frontendURL:   deps.FrontendURL,
		secureCookies: deps.SecureCookies,
		logger:        logger,
	}

	api := router.Group("/api/v1/google")
	api.GET("/auth/login", handler.handleLogin)
	api.GET("/auth/callback", handler.handleCallback)

	protected := api.Group("/")
	protected.Use(handler.requireSession)
	protected.GET("/me", handler.handleCurrentUser)

	return router, nil
}

type httpHandler struct {
	provider      IdentityProvider
	sessions      SessionCodec
	users         UserResolver
	frontendURL   string
	secureCookies bool
	logger        *zap.Logger
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	c.Redirect(http.StatusFound, h.provider.LoginURL(uuid.NewString()))
}

// handleCallback runs the login transition: exchange the authorization
// code, resolve the account, mint the session token and hand it to the
// client. The cookie is set last; no failure path sets one.
func (h *httpHandler) handleCallback(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code is required"})
		return
	}

	identity, err := h.provider.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("authorization code exchange failed", zap.Error(err))
		if errors.Is(err, auth.ErrIdentityMissing) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no provider identity found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Resolve(c.Request.Context(), identity)
	if err != nil {
		if errors.Is(err, users.ErrEmailRequired) || errors.Is(err, users.ErrInvalidIdentity) {
			h.logger.Warn("provider identity unusable for account creation", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("user resolution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist user"})
		return
	}

	token, err := h.sessions.Mint(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to mint session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue session"})
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookieName, token, sessionCookieMaxAge, "/", "", h.secureCookies, true)
	c.Redirect(http.StatusFound, h.frontendURL)
}

// requireSession gates protected routes on a valid session cookie. It
// never touches the user store; a valid token is proof enough.
func (h *httpHandler) requireSession(c *gin.Context) {
	token, err := c.Cookie(SessionCookieName)
	if err != nil || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized User!"})
		return
	}

	claims, err := h.sessions.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) {
			h.logger.Info("session token rejected", zap.Error(err))
		} else {
			h.logger.Warn("session token rejected", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
		return
	}

	c.Set(userIDContextKey, claims.UserID)
	c.Set(userEmailContextKey, claims.Email)
	c.Next()
}

func (h *httpHandler) handleCurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id": c.GetString(userIDContextKey),
		"email":   c.GetString(userEmailContextKey),
	})
}

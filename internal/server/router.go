package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/scribehq/scribe/internal/auth"
	"github.com/scribehq/scribe/internal/store"
	"go.uber.org/zap"
)

const (
	currentUserContextKey = "scribe_user"
	clientIDHeader        = "X-Client-Id"
)

var (
	errMissingAccounts      = errors.New("accounts service dependency required")
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingHub           = errors.New("store hub dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates bearer tokens for API access.
type TokenManager interface {
	IssueToken(user auth.User) (string, int64, error)
	ValidateToken(token string) (string, error)
}

type Dependencies struct {
	Accounts     *auth.Service
	TokenManager TokenManager
	Hub          *store.Hub
	Logger       *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Accounts == nil {
		return nil, errMissingAccounts
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Hub == nil {
		return nil, errMissingHub
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", clientIDHeader},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		accounts: deps.Accounts,
		tokens:   deps.TokenManager,
		hub:      deps.Hub,
		logger:   logger,
	}

	router.POST("/auth/signup", handler.handleSignup)
	router.POST("/auth/login", handler.handleLogin)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/notes", handler.handleListNotes)
	protected.POST("/notes", handler.handleCreateNote)
	protected.PATCH("/notes/:id", handler.handleSaveNote)
	protected.DELETE("/notes/:id", handler.handleDeleteNote)
	protected.POST("/notes/:id/lock", handler.handleLockNote)
	protected.POST("/notes/:id/share", handler.handleShareNote)
	protected.POST("/notes/:id/leave", handler.handleLeaveNote)
	protected.POST("/notes/connect", handler.handleConnect)
	protected.GET("/notes/stream", handler.handleStream)

	return router, nil
}

type httpHandler struct {
	accounts *auth.Service
	tokens   TokenManager
	hub      *store.Hub
	logger   *zap.Logger
}

// storeFor resolves the caller's store handle. Distinct X-Client-Id values
// behave as distinct editor instances: a watcher sees its own writes flagged
// as pending before the acknowledged copy arrives.
func (h *httpHandler) storeFor(c *gin.Context) store.Store {
	clientID := strings.TrimSpace(c.GetHeader(clientIDHeader))
	if clientID == "" {
		clientID = currentUser(c).UID
	}
	return h.hub.Client(clientID)
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponsePayload struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   int64       `json:"expires_in"`
	TokenType   string      `json:"token_type"`
	User        userPayload `json:"user"`
}

type userPayload struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

func (h *httpHandler) handleSignup(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, auth.ErrEmailTaken) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": auth.UserMessage(err)})
		return
	}
	h.respondWithToken(c, http.StatusCreated, user)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.accounts.SignIn(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.UserMessage(err)})
		return
	}
	h.respondWithToken(c, http.StatusOK, user)
}

func (h *httpHandler) respondWithToken(c *gin.Context, status int, user auth.User) {
	token, expiresIn, err := h.tokens.IssueToken(user)
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.JSON(status, tokenResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		User:        userPayload{UID: user.UID, Email: user.Email},
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	user, err := h.accounts.Lookup(c.Request.Context(), subject)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(currentUserContextKey, user)
	c.Next()
}

func currentUser(c *gin.Context) auth.User {
	value, _ := c.Get(currentUserContextKey)
	user, _ := value.(auth.User)
	return user
}

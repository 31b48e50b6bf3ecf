package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// Handler exchanges the configured operator credentials for a token.
type Handler struct {
	Operator     string
	PasswordHash string // bcrypt; login is disabled when empty
	Tokens       TokenService
}

func NewHandler(operator, passwordHash string, tokens TokenService) *Handler {
	return &Handler{Operator: strings.TrimSpace(operator), PasswordHash: strings.TrimSpace(passwordHash), Tokens: tokens}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.login)
}

// HashPassword returns the bcrypt hash to configure as auth.operator_password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

type loginReq struct {
	Subject  string `json:"subject"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	if h.PasswordHash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "operator login disabled"})
		return
	}

	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject and password required"})
		return
	}

	// don't reveal which part failed
	nameOK := subtle.ConstantTimeCompare([]byte(subject), []byte(h.Operator)) == 1
	if err := bcrypt.CompareHashAndPassword([]byte(h.PasswordHash), []byte(req.Password)); err != nil || !nameOK {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, exp, err := h.Tokens.Sign(subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subject":    subject,
		"token":      token,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

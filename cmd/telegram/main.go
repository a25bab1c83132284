package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Error codes returned by the real MTProto layer.
const (
	CodePhoneCodeInvalid      = "PHONE_CODE_INVALID"
	CodePhoneCodeExpired      = "PHONE_CODE_EXPIRED"
	CodeSessionPasswordNeeded = "SESSION_PASSWORD_NEEDED"
	CodePeerNotFound          = "PEER_NOT_FOUND"
	CodeAuthKeyUnregistered   = "AUTH_KEY_UNREGISTERED"
)

// SendCodeRequest asks for a login code to be delivered to the phone.
type SendCodeRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
}

type SendCodeResponse struct {
	PhoneCodeHash string `json:"phone_code_hash"`
}

// SignInRequest completes the login handshake.
type SignInRequest struct {
	PhoneNumber   string `json:"phone_number" binding:"required"`
	PhoneCodeHash string `json:"phone_code_hash" binding:"required"`
	Code          string `json:"code" binding:"required"`
	Password      string `json:"password"`
}

type SignInResponse struct {
	SessionKey string `json:"session_key"`
}

type ResolveRequest struct {
	SessionKey  string `json:"session_key" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
}

type ResolveResponse struct {
	PeerID string `json:"peer_id"`
}

type SendMessageRequest struct {
	SessionKey string `json:"session_key" binding:"required"`
	PeerID     string `json:"peer_id" binding:"required"`
	Text       string `json:"text" binding:"required"`
}

type SendMessageResponse struct {
	MessageID string     `json:"message_id"`
	Delivered bool       `json:"delivered"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_message"`
}

type pendingCode struct {
	phoneNumber string
	code        string
	expiresAt   time.Time
}

// MockBridge simulates the MTProto side: it hands out login codes,
// keeps authorized session keys in memory and randomly resolves peers
// and delivers messages at the configured rates.
type MockBridge struct {
	deliveryRate  float64
	resolveRate   float64
	twoFactorRate float64
	codeTTL       time.Duration
	minDelay      time.Duration
	maxDelay      time.Duration
	rng           *rand.Rand

	mu       sync.Mutex
	pending  map[string]pendingCode
	sessions map[string]string
}

func NewMockBridge(deliveryRate, resolveRate, twoFactorRate float64, codeTTL, minDelay, maxDelay time.Duration) *MockBridge {
	return &MockBridge{
		deliveryRate:  deliveryRate,
		resolveRate:   resolveRate,
		twoFactorRate: twoFactorRate,
		codeTTL:       codeTTL,
		minDelay:      minDelay,
		maxDelay:      maxDelay,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		pending:       make(map[string]pendingCode),
		sessions:      make(map[string]string),
	}
}

// issueCode creates a login code for the phone and returns its hash.
// The code is only printed to the log, the same way a real code only
// reaches the phone.
func (b *MockBridge) issueCode(phoneNumber string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	hash := uuid.New().String()
	code := fmt.Sprintf("%05d", b.rng.Intn(100000))
	b.pending[hash] = pendingCode{
		phoneNumber: phoneNumber,
		code:        code,
		expiresAt:   time.Now().Add(b.codeTTL),
	}

	log.Info().
		Str("phone", phoneNumber).
		Str("code", code).
		Str("phone_code_hash", hash).
		Msg("Login code issued")

	return hash
}

// signIn validates the code against the pending entry. On success the
// entry is consumed and a session key is registered.
func (b *MockBridge) signIn(req *SignInRequest) (string, *ErrorResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.pending[req.PhoneCodeHash]
	if !ok || entry.phoneNumber != req.PhoneNumber || time.Now().After(entry.expiresAt) {
		delete(b.pending, req.PhoneCodeHash)
		return "", &ErrorResponse{
			ErrorCode: CodePhoneCodeExpired,
			ErrorMsg:  "The confirmation code has expired",
		}
	}

	if entry.code != req.Code {
		return "", &ErrorResponse{
			ErrorCode: CodePhoneCodeInvalid,
			ErrorMsg:  "The confirmation code is invalid",
		}
	}

	if req.Password == "" && b.rng.Float64() < b.twoFactorRate {
		return "", &ErrorResponse{
			ErrorCode: CodeSessionPasswordNeeded,
			ErrorMsg:  "Two-step verification is enabled, a password is required",
		}
	}

	delete(b.pending, req.PhoneCodeHash)
	key := uuid.New().String()
	b.sessions[key] = req.PhoneNumber
	return key, nil
}

func (b *MockBridge) isAuthorized(sessionKey string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[sessionKey]
	return ok
}

func (b *MockBridge) randomDelay() time.Duration {
	delta := b.maxDelay - b.minDelay
	if delta <= 0 {
		return b.minDelay
	}
	return b.minDelay + time.Duration(b.rng.Int63n(int64(delta)))
}

func (b *MockBridge) hasAccount() bool {
	return b.rng.Float64() < b.resolveRate
}

func (b *MockBridge) isDelivered() bool {
	return b.rng.Float64() < b.deliveryRate
}

// Handler struct holds the mock bridge and routes
type Handler struct {
	bridge *MockBridge
}

func NewHandler(bridge *MockBridge) *Handler {
	return &Handler{bridge: bridge}
}

// SendCode handles login code requests
func (h *Handler) SendCode(c *gin.Context) {
	var req SendCodeRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	hash := h.bridge.issueCode(req.PhoneNumber)
	c.JSON(http.StatusOK, SendCodeResponse{PhoneCodeHash: hash})
}

// SignIn handles login completion requests
func (h *Handler) SignIn(c *gin.Context) {
	var req SignInRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	key, bridgeErr := h.bridge.signIn(&req)
	if bridgeErr != nil {
		log.Warn().
			Str("phone", req.PhoneNumber).
			Str("error_code", bridgeErr.ErrorCode).
			Msg("Sign-in rejected")
		c.JSON(http.StatusBadRequest, bridgeErr)
		return
	}

	log.Info().Str("phone", req.PhoneNumber).Msg("Session authorized")
	c.JSON(http.StatusOK, SignInResponse{SessionKey: key})
}

// Resolve handles phone-to-peer lookups
func (h *Handler) Resolve(c *gin.Context) {
	var req ResolveRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if !h.bridge.isAuthorized(req.SessionKey) {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			ErrorCode: CodeAuthKeyUnregistered,
			ErrorMsg:  "The session key is not authorized",
		})
		return
	}

	if !h.bridge.hasAccount() {
		log.Info().Str("phone", req.PhoneNumber).Msg("No account for phone")
		c.JSON(http.StatusNotFound, ErrorResponse{
			ErrorCode: CodePeerNotFound,
			ErrorMsg:  "No Telegram account is registered for this phone number",
		})
		return
	}

	c.JSON(http.StatusOK, ResolveResponse{PeerID: "peer_" + uuid.New().String()[:8]})
}

// SendMessage handles message send requests
func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if !h.bridge.isAuthorized(req.SessionKey) {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			ErrorCode: CodeAuthKeyUnregistered,
			ErrorMsg:  "The session key is not authorized",
		})
		return
	}

	delay := h.bridge.randomDelay()
	time.Sleep(delay)

	response := SendMessageResponse{
		MessageID: uuid.New().String(),
	}
	if h.bridge.isDelivered() {
		now := time.Now()
		response.Delivered = true
		response.SentAt = &now
	}

	log.Info().
		Str("peer_id", req.PeerID).
		Bool("delivered", response.Delivered).
		Dur("delay", delay).
		Msg("Message sent")

	c.JSON(http.StatusOK, response)
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"timestamp":     time.Now(),
		"delivery_rate": h.bridge.deliveryRate,
		"resolve_rate":  h.bridge.resolveRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	// MTProto routes
	mt := router.Group("/mtproto")
	{
		mt.POST("/auth/sendCode", handler.SendCode)
		mt.POST("/auth/signIn", handler.SignIn)
		mt.POST("/contacts/resolve", handler.Resolve)
		mt.POST("/messages/send", handler.SendMessage)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8082")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 0.95)
	resolveRate := getEnvFloat("RESOLVE_RATE", 0.9)
	twoFactorRate := getEnvFloat("TWO_FACTOR_RATE", 0)
	codeTTL := getEnvDuration("CODE_TTL", 5*time.Minute)
	minDelay := getEnvDuration("MIN_DELAY", 100*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 1*time.Second)

	log.Info().
		Str("port", port).
		Float64("delivery_rate", deliveryRate).
		Float64("resolve_rate", resolveRate).
		Dur("code_ttl", codeTTL).
		Msg("Starting Mock Telegram Bridge")

	// Create mock bridge
	bridge := NewMockBridge(deliveryRate, resolveRate, twoFactorRate, codeTTL, minDelay, maxDelay)
	handler := NewHandler(bridge)
	router := SetupRouter(handler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mselim/campaign-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrUnauthorized   = errors.New("telegram session is not authorized")
	ErrPeerNotFound   = errors.New("no telegram account for phone number")
	ErrCodeInvalid    = errors.New("login code is invalid")
	ErrCodeExpired    = errors.New("login code has expired")
	ErrPasswordNeeded = errors.New("two-factor password required")
	ErrUnavailable    = errors.New("telegram bridge unavailable")
)

// Bridge error codes, mirrored from the MTProto side.
const (
	codePhoneCodeInvalid      = "PHONE_CODE_INVALID"
	codePhoneCodeExpired      = "PHONE_CODE_EXPIRED"
	codeSessionPasswordNeeded = "SESSION_PASSWORD_NEEDED"
	codePeerNotFound          = "PEER_NOT_FOUND"
	codeAuthKeyUnregistered   = "AUTH_KEY_UNREGISTERED"
)

type sendCodeRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type sendCodeResponse struct {
	PhoneCodeHash string `json:"phone_code_hash"`
}

type signInRequest struct {
	PhoneNumber   string `json:"phone_number"`
	PhoneCodeHash string `json:"phone_code_hash"`
	Code          string `json:"code"`
	Password      string `json:"password,omitempty"`
}

type signInResponse struct {
	SessionKey string `json:"session_key"`
}

type resolveRequest struct {
	SessionKey  string `json:"session_key"`
	PhoneNumber string `json:"phone_number"`
}

type resolveResponse struct {
	PeerID string `json:"peer_id"`
}

type sendMessageRequest struct {
	SessionKey string `json:"session_key"`
	PeerID     string `json:"peer_id"`
	Text       string `json:"text"`
}

// SendResult is the bridge's acknowledgement of a message send.
type SendResult struct {
	MessageID string     `json:"message_id"`
	Delivered bool       `json:"delivered"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_message"`
}

type Config struct {
	BaseURL         string
	Timeout         time.Duration
	MaxConns        int
	ReadBufferSize  int
	WriteBufferSize int
}

// Client talks to the MTProto bridge over HTTP.
type Client struct {
	config *Config
	client *fasthttp.Client
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.BaseURL == "" {
		return nil, errors.New("bridge base url is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	httpClient := &fasthttp.Client{
		MaxConnsPerHost:     config.MaxConns,
		ReadTimeout:         config.Timeout,
		WriteTimeout:        config.Timeout,
		MaxIdleConnDuration: 60 * time.Second,
		ReadBufferSize:      config.ReadBufferSize,
		WriteBufferSize:     config.WriteBufferSize,
	}

	logger.Info("Telegram bridge client initialized", "url", config.BaseURL, "timeout", config.Timeout)

	return &Client{config: config, client: httpClient}, nil
}

// SendCode asks the bridge to deliver a login code to the phone number.
// The returned hash must be echoed back on SignIn.
func (c *Client) SendCode(ctx context.Context, phoneNumber string) (string, error) {
	body, err := json.Marshal(&sendCodeRequest{PhoneNumber: phoneNumber})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	response, err := c.doRequest(ctx, "POST", "/mtproto/auth/sendCode", body)
	if err != nil {
		return "", err
	}

	var resp sendCodeResponse
	if err := json.Unmarshal(response, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	logger.Info("Login code requested", "phone", phoneNumber)

	return resp.PhoneCodeHash, nil
}

// SignIn exchanges a login code for a session key. Password is only
// needed for accounts with two-factor auth enabled.
func (c *Client) SignIn(ctx context.Context, phoneNumber, phoneCodeHash, code, password string) (string, error) {
	body, err := json.Marshal(&signInRequest{
		PhoneNumber:   phoneNumber,
		PhoneCodeHash: phoneCodeHash,
		Code:          code,
		Password:      password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	response, err := c.doRequest(ctx, "POST", "/mtproto/auth/signIn", body)
	if err != nil {
		return "", err
	}

	var resp signInResponse
	if err := json.Unmarshal(response, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	logger.Info("Session authenticated", "phone", phoneNumber)

	return resp.SessionKey, nil
}

// ResolvePhone maps a phone number to a peer id reachable over the session.
func (c *Client) ResolvePhone(ctx context.Context, sessionKey, phoneNumber string) (string, error) {
	body, err := json.Marshal(&resolveRequest{SessionKey: sessionKey, PhoneNumber: phoneNumber})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	response, err := c.doRequest(ctx, "POST", "/mtproto/contacts/resolve", body)
	if err != nil {
		return "", err
	}

	var resp resolveResponse
	if err := json.Unmarshal(response, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return resp.PeerID, nil
}

// SendMessage delivers a rendered message to the resolved peer.
func (c *Client) SendMessage(ctx context.Context, sessionKey, peerID, text string) (*SendResult, error) {
	body, err := json.Marshal(&sendMessageRequest{SessionKey: sessionKey, PeerID: peerID, Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	response, err := c.doRequest(ctx, "POST", "/mtproto/messages/send", body)
	if err != nil {
		return nil, err
	}

	var resp SendResult
	if err := json.Unmarshal(response, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	logger.Debug("Message sent", "peer_id", peerID, "message_id", resp.MessageID, "delivered", resp.Delivered)

	return &resp, nil
}

// doRequest performs an HTTP request against the bridge with a deadline.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")

	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	statusCode := resp.StatusCode()
	if statusCode == fasthttp.StatusOK || statusCode == fasthttp.StatusAccepted {
		result := make([]byte, len(resp.Body()))
		copy(result, resp.Body())
		return result, nil
	}

	if statusCode >= fasthttp.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, statusCode)
	}

	var errResp errorResponse
	if err := json.Unmarshal(resp.Body(), &errResp); err != nil {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	return nil, bridgeError(errResp.ErrorCode, errResp.ErrorMsg)
}

func bridgeError(code, message string) error {
	switch code {
	case codePhoneCodeInvalid:
		return ErrCodeInvalid
	case codePhoneCodeExpired:
		return ErrCodeExpired
	case codeSessionPasswordNeeded:
		return ErrPasswordNeeded
	case codePeerNotFound:
		return ErrPeerNotFound
	case codeAuthKeyUnregistered:
		return ErrUnauthorized
	default:
		return fmt.Errorf("bridge error %s: %s", code, message)
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBridgeStub(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return client, srv
}

func TestClient_SendCode(t *testing.T) {
	client, _ := newBridgeStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mtproto/auth/sendCode", r.URL.Path)

		var req sendCodeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "15551234567", req.PhoneNumber)

		json.NewEncoder(w).Encode(sendCodeResponse{PhoneCodeHash: "hash-abc"})
	})

	hash, err := client.SendCode(context.Background(), "15551234567")
	require.NoError(t, err)
	assert.Equal(t, "hash-abc", hash)
}

func TestClient_SignIn(t *testing.T) {
	t.Run("successful sign in", func(t *testing.T) {
		client, _ := newBridgeStub(t, func(w http.ResponseWriter, r *http.Request) {
			var req signInRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "hash-abc", req.PhoneCodeHash)
			assert.Equal(t, "12345", req.Code)

			json.NewEncoder(w).Encode(signInResponse{SessionKey: "session-key"})
		})

		key, err := client.SignIn(context.Background(), "15551234567", "hash-abc", "12345", "")
		require.NoError(t, err)
		assert.Equal(t, "session-key", key)
	})

	t.Run("invalid code", func(t *testing.T) {
		client, _ := newBridgeStub(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errorResponse{ErrorCode: codePhoneCodeInvalid})
		})

		_, err := client.SignIn(context.Background(), "15551234567", "hash-abc", "00000", "")
		assert.ErrorIs(t, err, ErrCodeInvalid)
	})

	t.Run("two-factor password required", func(t *testing.T) {
		client, _ := newBridgeStub(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errorResponse{ErrorCode: codeSessionPasswordNeeded})
		})

		_, err := client.SignIn(context.Background(), "15551234567", "hash-abc", "12345", "")
		assert.ErrorIs(t, err, ErrPasswordNeeded)
	})
}

func TestClient_ResolvePhone(t *testing.T) {
	t.Run("resolves to peer id", func(t *testing.T) {
		client, _ := newBridgeStub(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(resolveResponse{PeerID: "peer-42"})
		})

		peerID, err := client.ResolvePhone(context.Background(), "session-key", "15551234567")
		require.NoError(t, err)
		assert.Equal(t, "peer-42", peerID)
	})

	t.Run("phone has no account", func(t *testing.T) {
		client, _ := newBridgeStub(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(errorResponse{ErrorCode: codePeerNotFound})
		})

		_, err := client.ResolvePhone(context.Background(), "session-key", "15551234567")
		assert.ErrorIs(t, err, ErrPeerNotFound)
	})

	t.Run("session revoked", func(t *testing.T) {
		client, _ := newBridgeStub(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errorResponse{ErrorCode: codeAuthKeyUnregistered})
		})

		_, err := client.ResolvePhone(context.Background(), "session-key", "15551234567")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestClient_SendMessage(t *testing.T) {
	client, _ := newBridgeStub(t, func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "peer-42", req.PeerID)

		now := time.Now()
		json.NewEncoder(w).Encode(SendResult{MessageID: "msg-1", Delivered: true, SentAt: &now})
	})

	result, err := client.SendMessage(context.Background(), "session-key", "peer-42", "Hi Ada!")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", result.MessageID)
	assert.True(t, result.Delivered)
}

func TestClient_BridgeDown(t *testing.T) {
	client, srv := newBridgeStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv.Close()

	_, err := client.SendCode(context.Background(), "15551234567")
	assert.ErrorIs(t, err, ErrUnavailable)
}

package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/redevirtus/virtus/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	if pub == "" {
		t.Error("expected non-empty public key")
	}
	if priv == "" {
		t.Error("expected non-empty private key")
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	// Private key should be base64url-encoded, 32 bytes P-256 scalar
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func TestConfigured(t *testing.T) {
	if NewService(Config{}).Configured() {
		t.Error("expected service without keys to be unconfigured")
	}
	pub, priv, _ := GenerateVAPIDKeys()
	if !NewService(Config{VAPIDPublicKey: pub, VAPIDPrivateKey: priv}).Configured() {
		t.Error("expected service with keys to be configured")
	}
}

type stubClient struct {
	status int
	req    *http.Request
}

func (c *stubClient) Do(req *http.Request) (*http.Response, error) {
	c.req = req
	return &http.Response{
		StatusCode: c.status,
		Body:       io.NopCloser(strings.NewReader("")),
	}, nil
}

func testSubscription(t *testing.T) *model.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate subscriber key: %v", err)
	}
	secret := make([]byte, 16)
	rand.Read(secret)
	return &model.PushSubscription{
		ID:        1,
		MemberID:  "m1",
		Endpoint:  "https://push.example.com/send/abc",
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(secret),
	}
}

func testService(t *testing.T, client *stubClient) *Service {
	t.Helper()
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	return NewService(Config{VAPIDPublicKey: pub, VAPIDPrivateKey: priv, HTTPClient: client})
}

func TestSend(t *testing.T) {
	client := &stubClient{status: http.StatusCreated}
	svc := testService(t, client)

	err := svc.Send(context.Background(), testSubscription(t), Payload{Title: "Lembrete", Body: "Hoje"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if client.req == nil {
		t.Fatal("expected request to push service")
	}
	if client.req.URL.Host != "push.example.com" {
		t.Errorf("host = %q, want push.example.com", client.req.URL.Host)
	}
	if !strings.HasPrefix(client.req.Header.Get("Authorization"), "vapid ") {
		t.Errorf("authorization = %q, want vapid scheme", client.req.Header.Get("Authorization"))
	}
}

func TestSendExpired(t *testing.T) {
	svc := testService(t, &stubClient{status: http.StatusGone})

	err := svc.Send(context.Background(), testSubscription(t), Payload{Title: "x"})
	if !errors.Is(err, ErrExpired) {
		t.Errorf("err = %v, want ErrExpired", err)
	}
}

func TestSendServerError(t *testing.T) {
	svc := testService(t, &stubClient{status: http.StatusInternalServerError})

	err := svc.Send(context.Background(), testSubscription(t), Payload{Title: "x"})
	if err == nil || errors.Is(err, ErrExpired) {
		t.Errorf("err = %v, want generic failure", err)
	}
}

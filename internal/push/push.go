package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/redevirtus/virtus/internal/model"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

// Payload is the JSON sent to the push service.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Sender delivers a payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Config holds VAPID configuration.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subscriber is the contact e-mail or https URL announced to push services.
	Subscriber string
	// HTTPClient overrides the client used to reach push services.
	HTTPClient webpush.HTTPClient
}

// Service handles sending web push notifications.
type Service struct {
	publicKey  string
	privateKey string
	subscriber string
	httpClient webpush.HTTPClient
}

// NewService creates a new push service with VAPID keys.
func NewService(cfg Config) *Service {
	subscriber := cfg.Subscriber
	if subscriber == "" {
		subscriber = "noreply@redevirtus.app"
	}
	return &Service{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subscriber: subscriber,
		httpClient: cfg.HTTPClient,
	}
}

// Configured reports whether both VAPID keys are present.
func (s *Service) Configured() bool {
	return s != nil && s.publicKey != "" && s.privateKey != ""
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Send sends a push notification to a subscription.
func (s *Service) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		HTTPClient:      s.httpClient,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subscriber,
		TTL:             86400,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pub, err := key.PublicKey.ECDH()
	if err != nil {
		return "", "", fmt.Errorf("convert public key: %w", err)
	}
	publicKey = base64.RawURLEncoding.EncodeToString(pub.Bytes())

	d := make([]byte, 32)
	key.D.FillBytes(d)
	privateKey = base64.RawURLEncoding.EncodeToString(d)

	return publicKey, privateKey, nil
}

// Package backup uploads encrypted snapshots of the persisted community state
// to S3-compatible storage once a day and prunes old snapshots.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/redevirtus/virtus/internal/kv"
)

var ErrDisabled = errors.New("backup not configured")

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Source produces the durable keys to back up.
type Source interface {
	Snapshot(ctx context.Context) (map[string]json.RawMessage, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Config holds backup manager configuration.
type Config struct {
	S3            S3Config
	Prefix        string
	Passphrase    string
	Hour          int
	RetentionDays int
	Location      *time.Location
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"lastBackup,omitempty"`
	LastKey    string     `json:"lastKey,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// archive is the plaintext layout of one snapshot object.
type archive struct {
	CreatedAt time.Time                  `json:"createdAt"`
	Keys      map[string]json.RawMessage `json:"keys"`
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithCounter counts uploads by result.
func WithCounter(c *prometheus.CounterVec) Option {
	return func(m *Manager) { m.counter = c }
}

// Manager manages encrypted snapshots in S3-compatible storage.
type Manager struct {
	mu      sync.RWMutex
	cfg     Config
	source  Source
	client  s3Client
	status  Status
	lastDay string

	logger  *slog.Logger
	now     func() time.Time
	counter *prometheus.CounterVec

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a backup manager. It stays disabled unless the bucket,
// both credentials and a passphrase are set.
func NewManager(cfg Config, source Source, opts ...Option) *Manager {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	m := &Manager{
		cfg:    cfg,
		source: source,
		status: Status{State: StateDisabled},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if cfg.S3.complete() && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether snapshots can be uploaded. It is nil-safe.
func (m *Manager) Enabled() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Start begins the scheduled backup loop.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() {
		return
	}
	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// checkSchedule runs at most one backup per local day, during the configured
// hour, and prunes expired snapshots afterwards.
func (m *Manager) checkSchedule(ctx context.Context) {
	now := m.now().In(m.cfg.Location)
	if now.Hour() != m.cfg.Hour {
		return
	}
	day := now.Format("2006-01-02")

	m.mu.Lock()
	if m.lastDay == day {
		m.mu.Unlock()
		return
	}
	m.lastDay = day
	m.mu.Unlock()

	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
		return
	}
	if _, err := m.Cleanup(ctx); err != nil {
		m.logger.Error("backup cleanup failed", "error", err)
	}
}

// RunNow uploads a snapshot immediately and returns its object key.
func (m *Manager) RunNow(ctx context.Context) (string, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()
	if client == nil {
		return "", ErrDisabled
	}

	m.setStatus(Status{State: StateRunning})
	key, size, err := m.upload(ctx, client, bucket)
	if err != nil {
		m.count("error")
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return "", err
	}

	m.count("ok")
	now := m.now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now, LastKey: key})
	m.logger.Info("backup uploaded", "key", key, "bytes", size)
	return key, nil
}

func (m *Manager) upload(ctx context.Context, client s3Client, bucket string) (string, int, error) {
	keys, err := m.source.Snapshot(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("snapshot state: %w", err)
	}
	created := m.now().UTC()
	plaintext, err := json.Marshal(archive{CreatedAt: created, Keys: keys})
	if err != nil {
		return "", 0, fmt.Errorf("marshal snapshot: %w", err)
	}
	sealed, err := Encrypt(plaintext, m.cfg.Passphrase)
	if err != nil {
		return "", 0, fmt.Errorf("encrypt: %w", err)
	}

	key := m.cfg.Prefix + fmt.Sprintf("virtus-%s.json.enc", created.Format("2006-01-02T150405Z"))
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return "", 0, fmt.Errorf("upload to s3: %w", err)
	}
	return key, len(sealed), nil
}

// Fetch downloads and decrypts the snapshot stored under key.
func (m *Manager) Fetch(ctx context.Context, key string) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()
	if client == nil {
		return nil, ErrDisabled
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	plaintext, err := Decrypt(sealed, m.cfg.Passphrase)
	if err != nil {
		return nil, err
	}
	var a archive
	if err := json.Unmarshal(plaintext, &a); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return a.Keys, nil
}

// Restore writes the snapshot stored under key back into dst. The running
// state must be reloaded afterwards.
func (m *Manager) Restore(ctx context.Context, key string, dst kv.Store) (int, error) {
	keys, err := m.Fetch(ctx, key)
	if err != nil {
		return 0, err
	}
	for k, v := range keys {
		if err := dst.Set(ctx, k, v); err != nil {
			return 0, fmt.Errorf("restore %s: %w", k, err)
		}
	}
	return len(keys), nil
}

// Cleanup deletes snapshots older than the retention period and returns how
// many were removed.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()
	if client == nil {
		return 0, nil
	}

	before := m.now().UTC().AddDate(0, 0, -m.cfg.RetentionDays)
	pages := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(m.cfg.Prefix),
	})

	removed := 0
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return removed, fmt.Errorf("list backups: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.LastModified == nil || !obj.LastModified.Before(before) {
				continue
			}
			if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(bucket),
				Key:    obj.Key,
			}); err != nil {
				m.logger.Warn("failed to delete backup object", "key", aws.ToString(obj.Key), "error", err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

func (m *Manager) count(result string) {
	if m.counter != nil {
		m.counter.WithLabelValues(result).Inc()
	}
}

package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/redevirtus/virtus/internal/kv"
)

type mockObject struct {
	data     []byte
	modified time.Time
}

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	now     func() time.Time
	objects map[string]mockObject
	putErr  error
}

func newMockS3(now func() time.Time) *mockS3Client {
	return &mockS3Client{now: now, objects: make(map[string]mockObject)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = mockObject{data: data, modified: m.now()}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	for key, obj := range m.objects {
		if !strings.HasPrefix(key, aws.ToString(input.Prefix)) {
			continue
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			LastModified: aws.Time(obj.modified),
			Size:         aws.Int64(int64(len(obj.data))),
		})
	}
	return out, nil
}

type fakeSource struct {
	keys map[string]json.RawMessage
	err  error
}

func (f fakeSource) Snapshot(context.Context) (map[string]json.RawMessage, error) {
	return f.keys, f.err
}

var (
	snapshotKeys = map[string]json.RawMessage{
		"virtus_virtues": json.RawMessage(`[{"id":"v1","virtueText":"Rezei o terço"}]`),
	}
	configured = Config{
		S3:         S3Config{Bucket: "virtus", AccessKey: "key", SecretKey: "secret", Region: "auto"},
		Prefix:     "snapshots/",
		Passphrase: "frase-secreta",
		Hour:       3,
	}
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func setupManager(t *testing.T, src Source, opts ...Option) (*Manager, *mockS3Client, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 4, 3, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	m := NewManager(configured, src, opts...)
	mock := newMockS3(clock.Now)
	m.client = mock
	return m, mock, clock
}

func TestManagerDisabled(t *testing.T) {
	m := NewManager(Config{}, fakeSource{})
	if m.Enabled() {
		t.Error("manager without S3 config should be disabled")
	}
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}
	if _, err := m.RunNow(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("RunNow err = %v, want ErrDisabled", err)
	}

	noPassphrase := configured
	noPassphrase.Passphrase = ""
	if NewManager(noPassphrase, fakeSource{}).Enabled() {
		t.Error("manager without a passphrase should be disabled")
	}

	var nilManager *Manager
	if nilManager.Enabled() {
		t.Error("nil manager should report disabled")
	}

	if got := NewManager(configured, fakeSource{}).Status().State; got != StateIdle {
		t.Errorf("state = %q, want %q", got, StateIdle)
	}
}

func TestRunNowAndFetch(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "backups"}, []string{"result"})
	m, mock, _ := setupManager(t, fakeSource{keys: snapshotKeys}, WithCounter(counter))
	ctx := context.Background()

	key, err := m.RunNow(ctx)
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}
	if key != "snapshots/virtus-2026-03-04T030000Z.json.enc" {
		t.Errorf("key = %q", key)
	}
	if bytes.Contains(mock.objects[key].data, []byte("Rezei")) {
		t.Error("uploaded object is not encrypted")
	}

	status := m.Status()
	if status.State != StateIdle || status.LastKey != key || status.LastBackup == nil {
		t.Errorf("status = %+v", status)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}

	keys, err := m.Fetch(ctx, key)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(keys["virtus_virtues"]) != string(snapshotKeys["virtus_virtues"]) {
		t.Errorf("fetched virtues = %s", keys["virtus_virtues"])
	}
}

func TestRunNowFailure(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "backups"}, []string{"result"})
	m, _, _ := setupManager(t, fakeSource{err: errors.New("kv down")}, WithCounter(counter))

	if _, err := m.RunNow(context.Background()); err == nil {
		t.Fatal("expected error when the snapshot fails")
	}
	if got := m.Status(); got.State != StateError || got.Error == "" {
		t.Errorf("status = %+v", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestRestore(t *testing.T) {
	m, _, _ := setupManager(t, fakeSource{keys: snapshotKeys})
	ctx := context.Background()

	key, err := m.RunNow(ctx)
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}

	dst := kv.NewMemory()
	n, err := m.Restore(ctx, key, dst)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n != 1 {
		t.Errorf("restored %d keys, want 1", n)
	}
	got, _ := dst.Get(ctx, "virtus_virtues")
	if string(got) != string(snapshotKeys["virtus_virtues"]) {
		t.Errorf("restored value = %s", got)
	}
}

func TestCleanupRemovesExpired(t *testing.T) {
	m, mock, clock := setupManager(t, fakeSource{})
	now := clock.now
	mock.objects["snapshots/old-1"] = mockObject{modified: now.AddDate(0, 0, -40)}
	mock.objects["snapshots/old-2"] = mockObject{modified: now.AddDate(0, 0, -31)}
	mock.objects["snapshots/recent"] = mockObject{modified: now.AddDate(0, 0, -2)}
	mock.objects["other/old"] = mockObject{modified: now.AddDate(0, 0, -90)}

	removed, err := m.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	for _, key := range []string{"snapshots/recent", "other/old"} {
		if _, ok := mock.objects[key]; !ok {
			t.Errorf("%s should be kept", key)
		}
	}
}

func TestCheckScheduleOncePerDay(t *testing.T) {
	m, mock, clock := setupManager(t, fakeSource{keys: snapshotKeys})
	ctx := context.Background()

	clock.now = time.Date(2026, 3, 4, 2, 59, 0, 0, time.UTC)
	m.checkSchedule(ctx)
	if len(mock.objects) != 0 {
		t.Fatalf("backup ran before the scheduled hour")
	}

	clock.now = time.Date(2026, 3, 4, 3, 0, 0, 0, time.UTC)
	m.checkSchedule(ctx)
	clock.now = time.Date(2026, 3, 4, 3, 1, 0, 0, time.UTC)
	m.checkSchedule(ctx)
	if len(mock.objects) != 1 {
		t.Errorf("objects = %d, want 1 backup per day", len(mock.objects))
	}

	clock.now = time.Date(2026, 3, 5, 3, 0, 0, 0, time.UTC)
	m.checkSchedule(ctx)
	if len(mock.objects) != 2 {
		t.Errorf("objects = %d, want a second backup the next day", len(mock.objects))
	}
}

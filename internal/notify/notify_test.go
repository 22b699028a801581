package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"wisefido-care-scores/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeKVStore 仅用于单元测试（内存 KV + TTL）
type fakeKVStore struct {
	mu   sync.Mutex
	data map[string]fakeKVItem
}

type fakeKVItem struct {
	value   string
	expires time.Time
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{data: make(map[string]fakeKVItem)}
}

func (f *fakeKVStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.data[key]
	if !ok || (!item.expires.IsZero() && time.Now().After(item.expires)) {
		return "", ErrCacheMiss
	}
	return item.value, nil
}

func (f *fakeKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	f.data[key] = fakeKVItem{value: value, expires: exp}
	return nil
}

type streamMessage struct {
	stream string
	kind   string
	data   interface{}
}

type fakeStream struct {
	messages []streamMessage
	err      error
}

func (f *fakeStream) Publish(ctx context.Context, stream, kind string, data interface{}) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.messages = append(f.messages, streamMessage{stream, kind, data})
	return "1-0", nil
}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	published []published
	failTopic string
}

func (f *fakePublisher) Publish(topic string, retained bool, payload []byte) error {
	if topic == f.failTopic {
		return errors.New("not connected")
	}
	f.published = append(f.published, published{topic, retained, payload})
	return nil
}

var summary = models.PeriodSummary{
	RunID: "run-1", PeriodDays: 7, StartDateID: 20250210, EndDateID: 20250216,
	Residents: 2, Domains: 5, Processed: 10, Written: 4, Skipped: 6, RedAlerts: 1,
}

func TestRedisNotifier_SnapshotIsCachedAndStreamed(t *testing.T) {
	kv := newFakeKVStore()
	stream := &fakeStream{}
	n := NewRedisNotifier(kv, stream, "care-scores:snapshots", time.Hour, zap.NewNop())

	require.NoError(t, n.NotifySnapshot(context.Background(), summary))

	require.Len(t, stream.messages, 1)
	assert.Equal(t, "care-scores:snapshots", stream.messages[0].stream)
	assert.Equal(t, KindSnapshot, stream.messages[0].kind)

	cached, err := n.LatestSummary(context.Background(), "", 20250216, 7)
	require.NoError(t, err)
	assert.Equal(t, summary, *cached)

	_, err = n.LatestSummary(context.Background(), "", 20250216, 30)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisNotifier_ClientRunKeepsAllClientsSummary(t *testing.T) {
	kv := newFakeKVStore()
	n := NewRedisNotifier(kv, &fakeStream{}, "s", time.Hour, zap.NewNop())
	ctx := context.Background()

	meadowview := summary
	meadowview.Client = "Meadowview"
	meadowview.Residents = 1
	meadowview.Written = 1

	require.NoError(t, n.NotifySnapshot(ctx, summary))
	require.NoError(t, n.NotifySnapshot(ctx, meadowview))

	all, err := n.LatestSummary(ctx, "", 20250216, 7)
	require.NoError(t, err)
	assert.Equal(t, summary, *all)

	filtered, err := n.LatestSummary(ctx, "Meadowview", 20250216, 7)
	require.NoError(t, err)
	assert.Equal(t, meadowview, *filtered)
}

func TestClientSegment(t *testing.T) {
	tests := []struct {
		client string
		want   string
	}{
		{"", AllClients},
		{"  ", AllClients},
		{"Meadowview", "Meadowview"},
		{"Oak Lodge", "Oak_Lodge"},
		{"North/East+#1", "North-East--1"},
	}
	for _, tt := range tests {
		t.Run(tt.client, func(t *testing.T) {
			assert.Equal(t, tt.want, ClientSegment(tt.client))
		})
	}
	assert.Equal(t, "care-scores:summary:all:20250216:7", SummaryKey("", 20250216, 7))
	assert.Equal(t, "care-scores:summary:Meadowview:20250216:7", SummaryKey("Meadowview", 20250216, 7))
}

func TestRedisNotifier_StreamFailure(t *testing.T) {
	stream := &fakeStream{err: errors.New("READONLY")}
	n := NewRedisNotifier(newFakeKVStore(), stream, "s", time.Hour, zap.NewNop())

	assert.Error(t, n.NotifySnapshot(context.Background(), summary))
	assert.Error(t, n.NotifyRiskAlerts(context.Background(), []models.RiskAlert{{ResidentID: 1}}))
}

func TestRedisNotifier_Alerts(t *testing.T) {
	stream := &fakeStream{}
	n := NewRedisNotifier(newFakeKVStore(), stream, "s", time.Hour, zap.NewNop())

	alerts := []models.RiskAlert{{ResidentID: 1, DomainID: 2}, {ResidentID: 3, DomainID: 2}}
	require.NoError(t, n.NotifyRiskAlerts(context.Background(), alerts))
	require.Len(t, stream.messages, 2)
	assert.Equal(t, KindRiskAlert, stream.messages[1].kind)
	assert.Equal(t, alerts[1], stream.messages[1].data)
}

func TestMQTTNotifier(t *testing.T) {
	pub := &fakePublisher{failTopic: "care/alerts/3/2"}
	n := NewMQTTNotifier(pub, "care/alerts", zap.NewNop())

	require.NoError(t, n.NotifySnapshot(context.Background(), summary))
	require.Len(t, pub.published, 1)
	assert.Equal(t, "care/alerts/summary/all/7", pub.published[0].topic)
	assert.True(t, pub.published[0].retained)

	err := n.NotifyRiskAlerts(context.Background(), []models.RiskAlert{
		{ResidentID: 1, DomainID: 2, ResidentName: "Alice Brown", OverallRisk: models.RiskRed},
		{ResidentID: 3, DomainID: 2, ResidentName: "Cara Jones", OverallRisk: models.RiskRed},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 alerts")

	require.Len(t, pub.published, 2)
	assert.Equal(t, "care/alerts/1/2", pub.published[1].topic)
	assert.False(t, pub.published[1].retained)

	var alert models.RiskAlert
	require.NoError(t, json.Unmarshal(pub.published[1].payload, &alert))
	assert.Equal(t, "Alice Brown", alert.ResidentName)
}

func TestMQTTNotifier_SummaryTopicPerClient(t *testing.T) {
	pub := &fakePublisher{}
	n := NewMQTTNotifier(pub, "care/alerts", zap.NewNop())

	filtered := summary
	filtered.Client = "Oak Lodge"
	require.NoError(t, n.NotifySnapshot(context.Background(), summary))
	require.NoError(t, n.NotifySnapshot(context.Background(), filtered))

	require.Len(t, pub.published, 2)
	assert.Equal(t, "care/alerts/summary/all/7", pub.published[0].topic)
	assert.Equal(t, "care/alerts/summary/Oak_Lodge/7", pub.published[1].topic)

	var got models.PeriodSummary
	require.NoError(t, json.Unmarshal(pub.published[1].payload, &got))
	assert.Equal(t, "Oak Lodge", got.Client)
}

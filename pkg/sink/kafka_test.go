package sink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/matchmore/alps-go/pkg/model"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
	closed  int
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.mu.Lock()
	defer p.mu.Unlock()
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if p.err == nil {
			p.records = append(p.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func (p *fakeProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
}

func header(r *kgo.Record, key string) string {
	for _, h := range r.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestSendProducesRecordPerMatch(t *testing.T) {
	p := &fakeProducer{}
	k, err := NewKafkaWithProducer(p, KafkaConfig{Topic: "alps.matches"})
	require.NoError(t, err)

	matches := []model.Match{
		{ID: "m1", Subscription: model.Subscription{ID: "s1"}, Publication: model.Publication{ID: "p1"}},
		{ID: "m2", Subscription: model.Subscription{ID: "s2"}, Publication: model.Publication{ID: "p2"}},
	}
	require.NoError(t, k.Send(context.Background(), "dev-1", matches))

	require.Len(t, p.records, 2)
	r := p.records[1]
	assert.Equal(t, "alps.matches", r.Topic)
	assert.Equal(t, "m2", string(r.Key))
	assert.Equal(t, "dev-1", header(r, HeaderDeviceID))
	assert.Equal(t, "s2", header(r, HeaderSubscriptionID))
	assert.Equal(t, "p2", header(r, HeaderPublicationID))

	var decoded model.Match
	require.NoError(t, json.Unmarshal(r.Value, &decoded))
	assert.Equal(t, "m2", decoded.ID)
}

func TestSendEmptyBatchIsNoop(t *testing.T) {
	p := &fakeProducer{}
	k, err := NewKafkaWithProducer(p, KafkaConfig{Topic: "t"})
	require.NoError(t, err)

	require.NoError(t, k.Send(context.Background(), "dev-1", nil))
	assert.Empty(t, p.records)
}

func TestSendFailure(t *testing.T) {
	boom := errors.New("broker down")
	p := &fakeProducer{err: boom}
	k, err := NewKafkaWithProducer(p, KafkaConfig{Topic: "t"})
	require.NoError(t, err)

	err = k.Send(context.Background(), "dev-1", []model.Match{{ID: "m1"}})
	assert.ErrorIs(t, err, boom)

	// Forward swallows the failure.
	k.Forward("dev-1", []model.Match{{ID: "m1"}})
}

func TestClose(t *testing.T) {
	p := &fakeProducer{}
	k, err := NewKafkaWithProducer(p, KafkaConfig{Topic: "t"})
	require.NoError(t, err)

	require.NoError(t, k.Close())
	require.NoError(t, k.Close())
	assert.Equal(t, 1, p.closed)
	assert.ErrorIs(t, k.Send(context.Background(), "dev-1", []model.Match{{ID: "m1"}}), ErrClosed)
}

func TestNewKafkaValidation(t *testing.T) {
	_, err := NewKafkaWithProducer(nil, KafkaConfig{Topic: "t"})
	assert.Error(t, err)
	_, err = NewKafkaWithProducer(&fakeProducer{}, KafkaConfig{})
	assert.Error(t, err)
	_, err = NewKafka(nil, KafkaConfig{Topic: "t"})
	assert.Error(t, err)
}

package events

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSNS struct{ mock.Mock }

func (m *mockSNS) Publish(ctx context.Context, topicArn string, message []byte, attrs map[string]string) error {
	args := m.Called(ctx, topicArn, message, attrs)
	return args.Error(0)
}

type recordingWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

type orderCreated struct {
	OrderID string  `json:"order_id"`
	Total   float64 `json:"total"`
}

func TestSNSPublisher(t *testing.T) {
	sns := &mockSNS{}
	sns.On("Publish", mock.Anything, "arn:aws:sns:ap-south-1:000000000000:orders",
		[]byte(`{"order_id":"o-1","total":12.5}`),
		map[string]string{"event_type": "order_created", "key": "o-1"}).Return(nil)

	p := NewSNSPublisher(sns, "arn:aws:sns:ap-south-1:000000000000:orders")
	require.NoError(t, p.Publish(context.Background(), "order_created", "o-1", orderCreated{OrderID: "o-1", Total: 12.5}))
	sns.AssertExpectations(t)
}

func TestKafkaPublisher(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPublisher(w)

	require.NoError(t, p.Publish(context.Background(), "order_cancelled", "o-9", orderCreated{OrderID: "o-9"}))
	require.NoError(t, p.Close())

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "o-9", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"order_id":"o-9","total":0}`, string(w.msgs[0].Value))
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, "order_cancelled", string(w.msgs[0].Headers[0].Value))
	assert.True(t, w.closed)
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(zap.NewNop())
	assert.NoError(t, p.Publish(context.Background(), "order_created", "k", map[string]int{"a": 1}))
	assert.NoError(t, p.Close())
}

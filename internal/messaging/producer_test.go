package messaging_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"school-directory/internal/events"
	"school-directory/internal/logger"
	"school-directory/internal/messaging"
	"school-directory/internal/school"
	"school-directory/testing/testinfra"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer_SendMessage(t *testing.T) {
	sub := testinfra.Subscribe(t, "schools.created")

	producer, err := messaging.NewProducer(testinfra.NATSURL(t), "schools.created", logger.Discard())
	require.NoError(t, err)
	defer producer.Close()

	require.NoError(t, producer.Ping())

	event := school.CreatedEvent{ID: 7, Name: "St. Mary's School", City: "Mumbai", State: "Maharashtra"}
	require.NoError(t, producer.SendMessage(context.Background(), event))

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var got school.CreatedEvent
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, 7, got.ID)
	assert.Equal(t, "St. Mary's School", got.Name)
	assert.Equal(t, school.CreatedEventType, msg.Header.Get(events.HeaderEventType))
	assert.Equal(t, "7", msg.Header.Get(nats.MsgIdHdr))
}

func TestProducer_CancelledContext(t *testing.T) {
	producer, err := messaging.NewProducer(testinfra.NATSURL(t), "schools.created", logger.Discard())
	require.NoError(t, err)
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, producer.SendMessage(ctx, school.CreatedEvent{ID: 1}), context.Canceled)
}

func TestProducer_UnmarshalableValue(t *testing.T) {
	producer, err := messaging.NewProducer(testinfra.NATSURL(t), "schools.created", logger.Discard())
	require.NoError(t, err)
	defer producer.Close()

	assert.Error(t, producer.SendMessage(context.Background(), make(chan int)))
}

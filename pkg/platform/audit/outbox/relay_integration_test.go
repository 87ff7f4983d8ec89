//go:build integration

package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"kyc/pkg/platform/audit"
	"kyc/pkg/platform/audit/store/postgres"
	id "kyc/pkg/domain"
	"kyc/pkg/testutil/containers"
)

func TestRelayDeliversOutboxToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := containers.GetManager().GetPostgres(t)
	broker := containers.GetManager().GetRedpanda(t)
	require.NoError(t, pg.TruncateTables(ctx))

	const topic = "kyc.audit.test"
	store := postgres.New(pg.DB)
	userID := id.NewUserID()
	require.NoError(t, store.Append(ctx, audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Action:    string(audit.EventScoreCalculated),
		Decision:  "under_review",
	}))

	producer, err := NewKafkaClient([]string{broker.Broker}, topic)
	require.NoError(t, err)
	defer producer.Close()

	relay := NewRelay(store, producer, topic)
	n, err := relay.RelayOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = relay.RelayOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, n, "published entries are not relayed twice")

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, userID.String(), string(records[0].Key))

	event, err := postgres.DecodePayload(records[0].Value)
	require.NoError(t, err)
	require.Equal(t, string(audit.EventScoreCalculated), event.Action)
	require.Equal(t, userID, event.UserID)
}

package outbox_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/maison-pos/pkg/db/dbtest"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	"github.com/angelmondragon/maison-pos/pkg/outbox"
)

func dlqEntry(eventType enums.OutboxEventType, registerID string, failedAt time.Time, msg string) models.OutboxDLQ {
	entry := models.OutboxDLQ{
		EventID:       uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
		FailedAt:      failedAt,
	}
	if registerID != "" {
		entry.RegisterID = &registerID
	}
	return entry
}

func TestDLQInsertRequiresTransaction(t *testing.T) {
	repo := outbox.NewDLQRepository(dbtest.Open(t).DB())
	err := repo.InsertTx(nil, dlqEntry(enums.EventOrderCreated, "", time.Now(), "boom"))
	require.Error(t, err)
}

func TestDLQListFiltersAndOrders(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewDLQRepository(client.DB())
	now := time.Now().UTC()

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		for _, e := range []models.OutboxDLQ{
			dlqEntry(enums.EventReceiptRequested, "front", now.Add(-2*time.Hour), "smtp down"),
			dlqEntry(enums.EventReceiptRequested, "back", now.Add(-time.Hour), "smtp down"),
			dlqEntry(enums.EventOrderCreated, "front", now.Add(-30*time.Minute), "topic missing"),
		} {
			if err := repo.InsertTx(tx, e); err != nil {
				return err
			}
		}
		return nil
	}))

	all, err := repo.List(context.Background(), outbox.DLQFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, enums.EventOrderCreated, all[0].EventType)

	receipts, err := repo.List(context.Background(), outbox.DLQFilter{EventType: enums.EventReceiptRequested, RegisterID: "front"})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.NotNil(t, receipts[0].RegisterID)
	assert.Equal(t, "front", *receipts[0].RegisterID)

	recent, err := repo.List(context.Background(), outbox.DLQFilter{Since: now.Add(-90 * time.Minute), Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, enums.EventOrderCreated, recent[0].EventType)
}

func TestDLQInsertTruncatesLongErrors(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewDLQRepository(client.DB())
	long := strings.Repeat("é", 1000)

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return repo.InsertTx(tx, dlqEntry(enums.EventReceiptRequested, "", time.Now(), long))
	}))

	rows, err := repo.List(context.Background(), outbox.DLQFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Equal(t, 1024, len(*rows[0].ErrorMessage))
	assert.True(t, strings.HasPrefix(long, *rows[0].ErrorMessage))
}

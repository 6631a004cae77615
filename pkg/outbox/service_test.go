package outbox_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/maison-pos/pkg/db/dbtest"
	"github.com/angelmondragon/maison-pos/pkg/db/models"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	"github.com/angelmondragon/maison-pos/pkg/logger"
	"github.com/angelmondragon/maison-pos/pkg/outbox"
)

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))

	orderID := uuid.New()
	staffID := uuid.New()
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{StaffID: staffID, RegisterID: "front-1"},
			Data:          map[string]any{"order_number": 7},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListForAggregate(orderID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, staffID, envelope.Actor.StaffID)
	assert.JSONEq(t, `{"order_number":7}`, string(envelope.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, nil)

	orderID := uuid.New()
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventReceiptRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          map[string]string{"email": "a@b.c"},
		}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	rows, err := repo.ListForAggregate(orderID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFetchUnpublishedSkipsExhaustedRows(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	db := client.DB()

	fresh := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	spent := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), AttemptCount: 5}
	require.NoError(t, db.Create(&fresh).Error)
	require.NoError(t, db.Create(&spent).Error)

	var rows []models.OutboxEvent
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		rows, err = repo.FetchUnpublishedForPublish(tx, 10, 5)
		return err
	}))
	require.Len(t, rows, 1)
	assert.Equal(t, fresh.ID, rows[0].ID)

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return repo.MarkPublishedTx(tx, fresh.ID)
	}))
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		rows, err = repo.FetchUnpublishedForPublish(tx, 10, 5)
		return err
	}))
	assert.Empty(t, rows)
}

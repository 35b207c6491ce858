package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoppos/pos-backend/pkg/db/models"
	"github.com/shoppos/pos-backend/pkg/enums"
)

func seedEvent(t *testing.T, repo *Repository, publishedAt *time.Time, attempts int) {
	t.Helper()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventSaleCreated,
		AggregateType: enums.AggregateSale,
		AggregateID:   1,
		Payload:       json.RawMessage(`{}`),
		PublishedAt:   publishedAt,
		AttemptCount:  attempts,
	}
	require.NoError(t, repo.db.Create(&row).Error)
}

func TestDeletePublishedBefore(t *testing.T) {
	repo := NewRepository(openOutboxDB(t))
	cutoff := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	old := cutoff.Add(-time.Hour)
	recent := cutoff.Add(time.Hour)

	seedEvent(t, repo, &old, 1)
	seedEvent(t, repo, &recent, 1)
	seedEvent(t, repo, nil, 3)

	deleted, err := repo.DeletePublishedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, repo.db.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)
}

func TestCountExhausted(t *testing.T) {
	repo := NewRepository(openOutboxDB(t))
	published := time.Now().UTC()

	seedEvent(t, repo, nil, 10)
	seedEvent(t, repo, nil, 12)
	seedEvent(t, repo, nil, 2)
	seedEvent(t, repo, &published, 10)

	count, err := repo.CountExhausted(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

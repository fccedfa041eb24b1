package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"boxoffice/cache"
	"boxoffice/entity"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSource struct {
	lock  sync.Mutex
	Calls int
	Err   error
}

func (m *MockSource) Availability(_ context.Context, eventID string) (entity.Availability, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.Calls++
	return availability(eventID), m.Err
}

func availability(eventID string) entity.Availability {
	return entity.Availability{
		EventID: eventID,
		General: 12,
		Categories: []entity.CategoryAvailability{
			{CategoryID: 1, Name: "early bird", Bounded: true, Available: 3, OnSale: true},
		},
	}
}

func TestAvailability_Get(t *testing.T) {
	ctx := context.Background()
	rdb, mock := redismock.NewClientMock()
	source := &MockSource{}
	c := cache.NewAvailability(rdb, source, 5*time.Second)

	payload, err := json.Marshal(availability("event-1"))
	require.NoError(t, err)

	mock.ExpectGet("availability:event-1").RedisNil()
	mock.ExpectSet("availability:event-1", payload, 5*time.Second).SetVal("OK")
	mock.ExpectGet("availability:event-1").SetVal(string(payload))

	first, err := c.Get(ctx, "event-1")
	require.NoError(t, err)
	second, err := c.Get(ctx, "event-1")
	require.NoError(t, err)

	assert.Equal(t, availability("event-1"), first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.Calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailability_Get_redis_down(t *testing.T) {
	ctx := context.Background()
	rdb, mock := redismock.NewClientMock()
	source := &MockSource{}
	c := cache.NewAvailability(rdb, source, time.Second)

	payload, err := json.Marshal(availability("event-1"))
	require.NoError(t, err)

	mock.ExpectGet("availability:event-1").SetErr(errors.New("connection refused"))
	mock.ExpectSet("availability:event-1", payload, time.Second).SetErr(errors.New("connection refused"))

	a, err := c.Get(ctx, "event-1")
	require.NoError(t, err)
	assert.Equal(t, availability("event-1"), a)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailability_Get_source_error(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	source := &MockSource{Err: entity.ErrNotFound}
	c := cache.NewAvailability(rdb, source, time.Second)

	mock.ExpectGet("availability:missing").RedisNil()

	_, err := c.Get(context.Background(), "missing")
	require.ErrorIs(t, err, entity.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailability_Invalidate(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := cache.NewAvailability(rdb, &MockSource{}, time.Second)

	mock.ExpectDel("availability:event-1").SetVal(1)
	require.NoError(t, c.Invalidate(context.Background(), "event-1"))

	mock.ExpectDel("availability:event-1").SetErr(errors.New("connection refused"))
	require.Error(t, c.Invalidate(context.Background(), "event-1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

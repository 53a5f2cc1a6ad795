package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/cache"
	"github.com/iliyamo/cinema-booking/internal/model"
)

func newTestCoordinator(t *testing.T) (*cache.Coordinator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	coord := cache.NewCoordinator(cache.NewRedisStore(client, "cache"), cache.LockOptions{
		LockTTL:       5 * time.Second,
		RetryInterval: 5 * time.Millisecond,
		MaxWait:       time.Second,
	})
	return coord, mr
}

func TestListMoviesIsCached(t *testing.T) {
	db := newMemDB()
	db.addMovie(1, "Alien", 16)
	db.addMovie(2, "Heat", 12)
	coord, mr := newTestCoordinator(t)
	c := NewCatalog(memMovies{db}, memSessions{db}, coord, 30*time.Second)
	ctx := context.Background()

	first, err := c.ListMovies(ctx, model.ListQuery{})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, mr.Exists("cache:movies:list:0:10"))

	db.addMovie(3, "Ran", 0)
	second, err := c.ListMovies(ctx, model.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, first, second, "served from cache within TTL")
	assert.Equal(t, 1, db.listHits)

	mr.FastForward(31 * time.Second)
	third, err := c.ListMovies(ctx, model.ListQuery{})
	require.NoError(t, err)
	assert.Len(t, third, 3)
	assert.Equal(t, 2, db.listHits)
}

func TestListMoviesValidation(t *testing.T) {
	c := NewCatalog(memMovies{newMemDB()}, memSessions{newMemDB()}, nil, time.Minute)
	ctx := context.Background()

	for _, q := range []model.ListQuery{
		{Limit: 101},
		{Offset: -1},
		{SortBy: "password"},
		{Filters: map[string]string{"owner": "x"}},
		{Filters: map[string]string{"max_min_age": "old"}},
	} {
		_, err := c.ListMovies(ctx, q)
		assert.Equal(t, KindValidationFailed, KindOf(err), "%+v", q)
	}
}

func TestListMoviesInfrastructureFault(t *testing.T) {
	db := newMemDB()
	db.failNext = errDBDown
	c := NewCatalog(memMovies{db}, memSessions{db}, nil, time.Minute)

	_, err := c.ListMovies(context.Background(), model.ListQuery{})
	assert.ErrorIs(t, err, errDBDown)
	assert.Equal(t, KindInternal, KindOf(err))
}

func TestListSessionsInvalidatedBySchedule(t *testing.T) {
	db := newMemDB()
	db.addRoom(1, 10)
	db.addMovie(7, "Alien", 0)
	coord, mr := newTestCoordinator(t)
	c := NewCatalog(memMovies{db}, memSessions{db}, coord, time.Minute)
	s := NewScheduler(memSessions{db}, memRooms{db}, memMovies{db}, nil, coord)
	ctx := context.Background()

	empty, err := c.ListSessions(ctx, model.ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.True(t, mr.Exists("cache:sessions:list:0:10"))

	_, err = s.ScheduleSession(ctx, 1, SessionInput{MovieID: 7, RoomID: 1, Date: june1, Slot: model.Slot1400})
	require.NoError(t, err)
	assert.False(t, mr.Exists("cache:sessions:list:0:10"))

	got, err := c.ListSessions(ctx, model.ListQuery{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.Slot1400, got[0].Slot)
	assert.Equal(t, june1, got[0].Date.UTC())
}

func TestListSessionsFilters(t *testing.T) {
	coord, mr := newTestCoordinator(t)
	db := newMemDB()
	c := NewCatalog(memMovies{db}, memSessions{db}, coord, time.Minute)
	ctx := context.Background()

	_, err := c.ListSessions(ctx, model.ListQuery{Filters: map[string]string{"room_id": "abc"}})
	assert.Equal(t, KindValidationFailed, KindOf(err))
	_, err = c.ListSessions(ctx, model.ListQuery{Filters: map[string]string{"date": "06/01/2025"}})
	assert.Equal(t, KindValidationFailed, KindOf(err))

	_, err = c.ListSessions(ctx, model.ListQuery{SortBy: "Date", Desc: true, Filters: map[string]string{"date": "2025-06-01", "room_id": "1"}})
	require.NoError(t, err)
	assert.True(t, mr.Exists("cache:sessions:list:0:10:sort=date:desc:f=date=2025-06-01&room_id=1"))
}

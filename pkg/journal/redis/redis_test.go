package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Layr-Labs/walletlink-go/pkg/journal"
	"github.com/Layr-Labs/walletlink-go/pkg/logger"
	"github.com/Layr-Labs/walletlink-go/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getTestRedisAddress uses REDIS_TEST_ADDRESS if set, otherwise localhost:6379.
func getTestRedisAddress() string {
	if addr := os.Getenv("REDIS_TEST_ADDRESS"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// requireRedis skips the test when no Redis server is reachable. Each test
// gets its own key prefix so runs don't see each other's entries.
func requireRedis(t *testing.T, ttl time.Duration) *RedisJournal {
	t.Helper()

	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	cfg := &RedisConfig{
		Address:   getTestRedisAddress(),
		DB:        15,
		KeyPrefix: fmt.Sprintf("test-%s:", uuid.New().String()),
		TTL:       ttl,
	}

	rj, err := NewRedisJournal(cfg, testLogger)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", cfg.Address, err)
		return nil
	}
	t.Cleanup(func() { cleanupRedis(rj) })
	return rj
}

func cleanupRedis(rj *RedisJournal) {
	ctx := context.Background()
	iter := rj.client.Scan(ctx, 0, rj.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		rj.client.Del(ctx, iter.Val())
	}
	_ = rj.Close()
}

func TestNewRedisJournal_InvalidConfig(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	_, err := NewRedisJournal(nil, testLogger)
	require.Error(t, err)

	_, err = NewRedisJournal(&RedisConfig{}, testLogger)
	require.Error(t, err)
}

func TestRedisJournal_RecordAndLoad(t *testing.T) {
	rj := requireRedis(t, 0)

	entry := journal.NewEntry(types.CommandKindSignPersonalMessage, "req-1", journal.OutcomeSigned)
	entry.Callback = "app://sign-personal-message?result=aGk%3D"
	entry.Delivered = true
	require.NoError(t, rj.Record(entry))

	loaded, err := rj.Load(entry.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, entry.Kind, loaded.Kind)
	assert.Equal(t, entry.Callback, loaded.Callback)
	assert.True(t, entry.Timestamp.Equal(loaded.Timestamp))

	missing, err := rj.Load("missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
	require.NoError(t, rj.HealthCheck())
}

func TestRedisJournal_ListAndDelete(t *testing.T) {
	rj := requireRedis(t, 0)

	base := time.Now().UTC()
	for i := 3; i > 0; i-- {
		require.NoError(t, rj.Record(&journal.Entry{
			ID:        fmt.Sprintf("entry-%d", i),
			Kind:      types.CommandKindSignMessage,
			Outcome:   journal.OutcomeSigned,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	entries, err := rj.List()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "entry-1", entries[0].ID)
	assert.Equal(t, "entry-3", entries[2].ID)

	require.NoError(t, rj.Delete("entry-2"))
	entries, err = rj.List()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRedisJournal_ExpiredEntriesLeaveIndex(t *testing.T) {
	rj := requireRedis(t, time.Second)

	require.NoError(t, rj.Record(journal.NewEntry(types.CommandKindSignMessage, "", journal.OutcomeDropped)))
	time.Sleep(1500 * time.Millisecond)

	entries, err := rj.List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	count, err := rj.client.ZCard(context.Background(), rj.prefixKey(keyEntryIndex)).Result()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRedisJournal_Closed(t *testing.T) {
	rj := requireRedis(t, 0)
	require.NoError(t, rj.Close())
	require.NoError(t, rj.Close())

	require.Error(t, rj.HealthCheck())
	require.Error(t, rj.Record(journal.NewEntry(types.CommandKindSignMessage, "", journal.OutcomeSigned)))
	_, err := rj.List()
	require.Error(t, err)
}

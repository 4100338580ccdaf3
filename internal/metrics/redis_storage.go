package metrics

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
)

// RedisStorage provides Redis-backed persistence for metrics history.
type RedisStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration // Time to live for data points
}

// NewRedisStorage creates a new Redis storage backend.
// Returns error if connection fails.
func NewRedisStorage(url string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "parsing redis URL", err)
	}

	client := redis.NewClient(opts)

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "connecting to redis", err)
	}

	return &RedisStorage{
		client: client,
		prefix: "hyperast:metrics:",
		ttl:    24 * time.Hour, // Keep 24 hours of data by default
	}, nil
}

// SaveDataPoint saves a single data point to Redis.
// Uses sorted set with timestamp as score for efficient range queries.
func (rs *RedisStorage) SaveDataPoint(ctx context.Context, metric string, dp DataPoint) error {
	key := rs.prefix + metric
	score := float64(dp.Timestamp.Unix())
	member := encodeMember(dp)

	// Use pipeline for atomic operation
	pipe := rs.client.Pipeline()

	// A bucket saved again replaces its previous value
	pipe.ZRemRangeByScore(ctx, key, scoreArg(dp), scoreArg(dp))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  score,
		Member: member,
	})

	// Remove old data points (older than TTL)
	minScore := time.Now().Add(-rs.ttl).Unix()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", minScore))

	// Execute pipeline
	_, err := pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(errors.CodeUnavailable, "saving data point", err)
	}

	return nil
}

// LoadHistory loads historical data points since the given time.
func (rs *RedisStorage) LoadHistory(ctx context.Context, metric string, since time.Time) ([]DataPoint, error) {
	key := rs.prefix + metric

	// Query sorted set by score range
	results, err := rs.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.Unix()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "loading history", err)
	}

	// Convert results to DataPoints
	dataPoints := make([]DataPoint, 0, len(results))
	for _, z := range results {
		member, _ := z.Member.(string)
		value, ok := decodeMember(member)
		if !ok {
			continue
		}

		dataPoints = append(dataPoints, DataPoint{
			Timestamp: time.Unix(int64(z.Score), 0),
			Value:     value,
		})
	}

	return dataPoints, nil
}

// SaveBatch saves multiple data points in a single operation.
// More efficient than multiple SaveDataPoint calls.
func (rs *RedisStorage) SaveBatch(ctx context.Context, metric string, dataPoints []DataPoint) error {
	if len(dataPoints) == 0 {
		return nil
	}

	key := rs.prefix + metric

	// Build pipeline
	pipe := rs.client.Pipeline()

	// Add all data points, replacing buckets saved before
	members := make([]redis.Z, len(dataPoints))
	for i, dp := range dataPoints {
		pipe.ZRemRangeByScore(ctx, key, scoreArg(dp), scoreArg(dp))
		members[i] = redis.Z{
			Score:  float64(dp.Timestamp.Unix()),
			Member: encodeMember(dp),
		}
	}
	pipe.ZAdd(ctx, key, members...)

	// Remove old data points
	minScore := time.Now().Add(-rs.ttl).Unix()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", minScore))

	// Execute pipeline
	_, err := pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(errors.CodeUnavailable, "saving batch", err)
	}

	return nil
}

// GetMetricNames returns all metric names stored in Redis.
func (rs *RedisStorage) GetMetricNames(ctx context.Context) ([]string, error) {
	pattern := rs.prefix + "*"
	keys, err := rs.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "getting metric names", err)
	}

	// Strip prefix from keys
	names := make([]string, len(keys))
	prefixLen := len(rs.prefix)
	for i, key := range keys {
		names[i] = key[prefixLen:]
	}

	return names, nil
}

// Close closes the Redis connection.
func (rs *RedisStorage) Close() error {
	return rs.client.Close()
}

// SetTTL sets the time-to-live for data points.
func (rs *RedisStorage) SetTTL(ttl time.Duration) {
	rs.ttl = ttl
}

// StorageStats describes the persisted metrics history.
type StorageStats struct {
	Metrics  []string `json:"metrics"`
	Prefix   string   `json:"prefix"`
	TTLHours float64  `json:"ttl_hours"`
}

// GetStats returns storage statistics.
func (rs *RedisStorage) GetStats(ctx context.Context) (StorageStats, error) {
	names, err := rs.GetMetricNames(ctx)
	if err != nil {
		return StorageStats{}, err
	}
	slices.Sort(names)
	return StorageStats{
		Metrics:  names,
		Prefix:   rs.prefix,
		TTLHours: rs.ttl.Hours(),
	}, nil
}

func scoreArg(dp DataPoint) string {
	return strconv.FormatInt(dp.Timestamp.Unix(), 10)
}

// encodeMember prefixes the value with its timestamp so that equal values
// of different buckets stay distinct set members.
func encodeMember(dp DataPoint) string {
	return strconv.FormatInt(dp.Timestamp.UnixNano(), 10) + ":" + strconv.FormatFloat(dp.Value, 'g', -1, 64)
}

func decodeMember(member string) (float64, bool) {
	_, raw, ok := strings.Cut(member, ":")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil
}

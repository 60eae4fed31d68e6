package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// IRedis holds the day-scoped present markers. They are a fast-path duplicate
// check in front of the ledger's transactional check-then-insert; losing them
// is harmless because the database constraint is authoritative.
type IRedis interface {
	MarkPresent(ctx context.Context, courseID, studentID, day string) (bool, error)
	IsPresent(ctx context.Context, courseID, studentID, day string) (bool, error)
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

func presentKey(courseID, studentID, day string) string {
	return fmt.Sprintf("present:%s:%s:%s", courseID, day, studentID)
}

// MarkPresent sets the marker and reports whether it was newly set. The TTL
// runs out at the end of the attendance day plus a small grace window.
func (r *redisClient) MarkPresent(ctx context.Context, courseID, studentID, day string) (bool, error) {
	key := presentKey(courseID, studentID, day)

	created, err := r.client.SetNX(ctx, key, "1", untilEndOfDay()).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error setting present marker %s: %v", key, err))
		return false, err
	}

	return created, nil
}

func (r *redisClient) IsPresent(ctx context.Context, courseID, studentID, day string) (bool, error) {
	key := presentKey(courseID, studentID, day)

	_, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error reading present marker %s: %v", key, err))
		return false, err
	}

	return true, nil
}

func untilEndOfDay() time.Duration {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return time.Until(midnight) + time.Hour
}

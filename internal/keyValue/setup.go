package keyValue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Value struct {
	value   string
	expires time.Time
}

var mutex sync.RWMutex
var hashmap = make(map[string]Value)

var sugar *zap.SugaredLogger
var redisClient *redis.Client
var redisCtx = context.Background()
var selfContained = true

var sweeper *cron.Cron
var now = time.Now

// Setup picks the backend: the local hashmap when selfContained, otherwise redis.
// The local backend gets a cron job that drops expired keys every minute.
func Setup(_sugar *zap.SugaredLogger, _redisClient *redis.Client, _selfContained bool) error {
	sugar = _sugar
	redisClient = _redisClient
	selfContained = _selfContained

	if sweeper != nil {
		sweeper.Stop()
		sweeper = nil
	}

	if !selfContained {
		if redisClient == nil {
			return errors.New("redis client is required when not self-contained")
		}
		return nil
	}

	sweeper = cron.New()
	_, err := sweeper.AddFunc("@every 1m", removeExpiredKeys)
	if err != nil {
		return err
	}
	sweeper.Start()

	return nil
}

// Stop halts the local sweeper, if any.
func Stop() {
	if sweeper != nil {
		<-sweeper.Stop().Done()
		sweeper = nil
	}
}

func removeExpiredKeys() {
	mutex.Lock()
	defer mutex.Unlock()

	current := now()
	removed := 0
	for key, v := range hashmap {
		if v.expires.Before(current) {
			delete(hashmap, key)
			removed++
		}
	}

	if removed > 0 {
		sugar.Debugf("Removed %d expired keys from hashmap", removed)
	}
}

// lookup returns the live value of key, expired entries count as missing even before
// the sweeper gets to them. Caller holds the mutex.
func lookup(key string) (string, bool) {
	v, ok := hashmap[key]
	if !ok || v.expires.Before(now()) {
		return "", false
	}
	return v.value, true
}

func Get(key string) (string, error) {
	debugText := fmt.Sprintf("Getting value of key [%s]", key)
	if selfContained {
		sugar.Debugf("%s from hashmap", debugText)

		mutex.RLock()
		defer mutex.RUnlock()

		value, _ := lookup(key)
		return value, nil
	}

	sugar.Debugf("%s from redis", debugText)

	value, err := redisClient.Get(redisCtx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	} else if err != nil {
		return "", err
	}

	return value, nil
}

func GetDel(key string) (string, error) {
	debugText := fmt.Sprintf("Getting and deleting value of key [%s]", key)
	if selfContained {
		sugar.Debugf("%s from hashmap", debugText)

		mutex.Lock()
		defer mutex.Unlock()

		value, _ := lookup(key)
		delete(hashmap, key)

		return value, nil
	}

	sugar.Debugf("%s from redis", debugText)

	value, err := redisClient.GetDel(redisCtx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	} else if err != nil {
		return "", err
	}

	return value, nil
}

func Set(key string, value string, expires time.Duration) error {
	debugText := fmt.Sprintf("Setting value of key [%s]", key)
	if selfContained {
		sugar.Debugf("%s in hashmap", debugText)

		mutex.Lock()
		defer mutex.Unlock()

		hashmap[key] = Value{value, now().Add(expires)}

		return nil
	}

	sugar.Debugf("%s in redis", debugText)
	return redisClient.Set(redisCtx, key, value, expires).Err()
}

func Del(key string) error {
	if selfContained {
		sugar.Debugf("Deleting key [%s] from hashmap", key)

		mutex.Lock()
		defer mutex.Unlock()

		delete(hashmap, key)
		return nil
	}

	sugar.Debugf("Deleting key [%s] from redis", key)
	return redisClient.Del(redisCtx, key).Err()
}

func Exists(key string) (bool, error) {
	if selfContained {
		mutex.RLock()
		defer mutex.RUnlock()

		_, ok := lookup(key)
		return ok, nil
	}

	count, err := redisClient.Exists(redisCtx, key).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

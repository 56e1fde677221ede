package snowflake

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

type Snowflake struct {
	Timestamp int64
	WorkerID  int64
	Increment int64
}

const (
	timestampLength int64 = 42                                    // 42
	timestampPos          = 64 - timestampLength                  // 22
	workerLength    int64 = 10                                    // 10
	workerPos             = timestampPos - workerLength           // 12
	incrementLength       = 64 - (timestampLength + workerLength) // 12
)

var (
	maxWorkerValue    = int64(1)<<workerLength - 1
	maxIncrementValue = int64(1)<<incrementLength - 1

	lastIncrement, lastTimestamp int64
	mutex                        sync.Mutex

	workerID    int64 = 0
	hasWorkerID       = false

	now = func() int64 { return time.Now().UnixMilli() }
)

func Setup(id int64) error {
	mutex.Lock()
	defer mutex.Unlock()

	if id < 0 || id > maxWorkerValue {
		return fmt.Errorf("worker ID value must be between 0 and [%d]", maxWorkerValue)
	} else if !hasWorkerID {
		workerID = id
		hasWorkerID = true
		return nil
	}

	return fmt.Errorf("worker ID for snowflake generator has been already set")
}

// Generate returns a new ID. IDs of one worker are strictly increasing, when the increment
// of the current millisecond runs out it waits for the next one.
func Generate() (int64, error) {
	mutex.Lock()
	defer mutex.Unlock()

	timestamp := now()
	if timestamp < lastTimestamp {
		return 0, fmt.Errorf("clock moved backwards by %d ms", lastTimestamp-timestamp)
	}

	if timestamp == lastTimestamp {
		lastIncrement += 1
		if lastIncrement > maxIncrementValue {
			for timestamp <= lastTimestamp {
				time.Sleep(100 * time.Microsecond)
				timestamp = now()
			}
			lastIncrement = 0
		}
	} else {
		lastIncrement = 0
	}
	lastTimestamp = timestamp

	return timestamp<<timestampPos | workerID<<workerPos | lastIncrement, nil
}

func Extract(snowflakeId int64) Snowflake {
	return Snowflake{
		Timestamp: snowflakeId >> timestampPos,
		WorkerID:  (snowflakeId >> workerPos) & ((1 << workerLength) - 1),
		Increment: snowflakeId & ((1 << incrementLength) - 1),
	}
}

// Time is the creation time encoded in the ID.
func Time(snowflakeId int64) time.Time {
	return time.UnixMilli(snowflakeId >> timestampPos)
}

// Parse reads an ID from a URL parameter or JSON string.
func Parse(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

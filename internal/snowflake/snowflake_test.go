package snowflake

import (
	"testing"
	"time"
)

func TestSetupSnowflake(t *testing.T) {
	err := Setup(1)
	if err != nil {
		t.Error(err)
	}

	err = Setup(2)
	if err == nil {
		t.Error("Expected second Setup to fail, but it didn't")
	}
}

func TestSetupRejectsLargeWorkerID(t *testing.T) {
	err := Setup(maxWorkerValue + 1)
	if err == nil {
		t.Error("Expected worker ID overflow error, but there wasn't")
	}
}

func TestGenerateSnowflake(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatal(err)
	}

	if Extract(id).WorkerID != workerID {
		t.Errorf("Extract(%d).WorkerID = %d, want %d", id, Extract(id).WorkerID, workerID)
	}

	if time.Since(Time(id)) > time.Minute {
		t.Errorf("Time(%d) = %s, too far in the past", id, Time(id))
	}
}

func TestSnowflakeStrictlyIncreasing(t *testing.T) {
	var last int64
	// more than one millisecond worth of increments
	for i := 0; i < 10000; i++ {
		id, err := Generate()
		if err != nil {
			t.Fatal(err)
		}
		if id <= last {
			t.Fatalf("Generate() = %d after %d, IDs must increase", id, last)
		}
		last = id
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"123", 123, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tc := range tests {
		got, err := Parse(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Parse(%q) passed unexpectedly", tc.input)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("Parse(%q) = %d, %v, want %d", tc.input, got, err, tc.want)
		}
	}
}

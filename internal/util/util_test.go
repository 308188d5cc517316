package util

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRetrySucceedsAfterTransientErrors(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), 5, 0, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Retry called fn %d times, want 3", attempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	sentinel := errors.New("persistent error")
	err := Retry(context.Background(), 3, 0, func(context.Context) error {
		attempts++
		return sentinel
	})

	if !errors.Is(err, sentinel) {
		t.Fatalf("Retry error = %v, want wrapped %v", err, sentinel)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("Retry error %q missing attempt count", err)
	}
	if attempts != 3 {
		t.Errorf("Retry called fn %d times, want 3", attempts)
	}
}

func TestRetryRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Hour, func(context.Context) error {
		return errors.New("always fails")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry error = %v, want context.Canceled", err)
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "info", "json")
	log.Info("hello", "k", "v")
	if !strings.Contains(buf.String(), `"k":"v"`) {
		t.Errorf("json logger output missing attribute: %s", buf.String())
	}

	buf.Reset()
	log = NewLogger(&buf, "warn", "text")
	log.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info line should be dropped at warn level: %s", buf.String())
	}
	log.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("warn line missing: %s", buf.String())
	}
}

func TestRateLimiterFirstTokenImmediate(t *testing.T) {
	rl := NewRateLimiter(60)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
}

func TestRateLimiterZeroRateUnlimited(t *testing.T) {
	rl := NewRateLimiter(0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 10; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait %d returned error: %v", i, err)
		}
	}
}

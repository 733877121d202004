package httputil

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	t.Run("SucceedsFirstTry", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 3, time.Millisecond, func() error {
			calls++
			return nil
		})
		if err != nil || calls != 1 {
			t.Errorf("err = %v, calls = %d, want nil, 1", err, calls)
		}
	})

	t.Run("RetriesRetryable", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 3, time.Millisecond, func() error {
			calls++
			if calls < 3 {
				return &RetryableError{Err: errors.New("transient")}
			}
			return nil
		})
		if err != nil || calls != 3 {
			t.Errorf("err = %v, calls = %d, want nil, 3", err, calls)
		}
	})

	t.Run("FailsFastOnPermanent", func(t *testing.T) {
		calls := 0
		permanent := errors.New("bad request")
		err := Retry(context.Background(), 3, time.Millisecond, func() error {
			calls++
			return permanent
		})
		if err != permanent || calls != 1 {
			t.Errorf("err = %v, calls = %d, want permanent, 1", err, calls)
		}
	})

	t.Run("ExhaustsAttempts", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 3, time.Millisecond, func() error {
			calls++
			return &RetryableError{Err: errors.New("still down")}
		})
		if err == nil || calls != 3 {
			t.Errorf("err = %v, calls = %d, want error, 3", err, calls)
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Retry(ctx, 3, time.Hour, func() error {
			return &RetryableError{Err: errors.New("transient")}
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})

	t.Run("ZeroAttemptsRunsOnce", func(t *testing.T) {
		calls := 0
		Retry(context.Background(), 0, time.Millisecond, func() error {
			calls++
			return nil
		})
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func TestRetryableErrorUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := &RetryableError{Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() does not see through RetryableError")
	}
	if err.Error() != "cause" {
		t.Errorf("Error() = %q, want cause", err.Error())
	}
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCache(t *testing.T) {
	c, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	t.Run("Miss", func(t *testing.T) {
		var v payload
		ok, err := c.Get("unknown", &v)
		if ok || err != nil {
			t.Errorf("Get() = %v, %v, want false, nil", ok, err)
		}
	})

	t.Run("SetAndGet", func(t *testing.T) {
		want := payload{Name: "map", Count: 3}
		if err := c.Set("key", want); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		var got payload
		ok, err := c.Get("key", &got)
		if !ok || err != nil {
			t.Fatalf("Get() = %v, %v, want true, nil", ok, err)
		}
		if got != want {
			t.Errorf("Get() = %+v, want %+v", got, want)
		}
	})

	t.Run("ArbitraryKeys", func(t *testing.T) {
		// Keys with path separators must be safe.
		if err := c.Set("http://host/api/reliability_map?x=1", payload{Name: "ok"}); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		var got payload
		if ok, _ := c.Get("http://host/api/reliability_map?x=1", &got); !ok {
			t.Error("Get() miss for URL-shaped key")
		}
	})
}

func TestCacheExpiry(t *testing.T) {
	c, err := NewCache(t.TempDir(), time.Nanosecond)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	if err := c.Set("key", payload{Name: "stale"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	var v payload
	ok, err := c.Get("key", &v)
	if ok {
		t.Error("Get() hit for expired entry")
	}
	if !errors.Is(err, ErrExpired) {
		t.Errorf("Get() err = %v, want ErrExpired", err)
	}
}

func TestCacheNamespace(t *testing.T) {
	c, err := NewCache(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	a := c.Namespace("a:")
	b := c.Namespace("b:")

	if err := a.Set("key", payload{Name: "from-a"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	var v payload
	if ok, _ := b.Get("key", &v); ok {
		t.Error("namespace b sees namespace a's entry")
	}
	if ok, _ := a.Get("key", &v); !ok || v.Name != "from-a" {
		t.Errorf("Get() = %v, %+v, want hit from-a", ok, v)
	}

	// Namespaces chain.
	nested := a.Namespace("x:")
	nested.Set("key", payload{Name: "nested"})
	if ok, _ := a.Get("x:key", &v); !ok || v.Name != "nested" {
		t.Error("chained namespace key not reachable from parent prefix")
	}
}

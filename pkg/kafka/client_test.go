package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"video-chat-go/pkg/tasks"
)

func TestRecordFailureGivesUpAfterMaxAttempts(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	task := tasks.TranscriptIndexTask{TenantID: 3, VideoID: "42"}

	for i := 1; i <= MaxAttempts; i++ {
		giveUp, err := RecordFailure(ctx, rdb, task)
		if err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
		if want := i >= MaxAttempts; giveUp != want {
			t.Fatalf("attempt %d: giveUp = %v, want %v", i, giveUp, want)
		}
	}
	if ttl := mr.TTL(AttemptsKey(task)); ttl <= 0 || ttl > attemptsTTL {
		t.Fatalf("attempts key ttl = %v", ttl)
	}

	ClearFailures(ctx, rdb, task)
	if mr.Exists(AttemptsKey(task)) {
		t.Fatalf("attempts key should be cleared")
	}
	if giveUp, _ := RecordFailure(ctx, rdb, task); giveUp {
		t.Fatalf("counter should restart after ClearFailures")
	}
}

func TestAttemptsAreScopedPerVideo(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	a := tasks.TranscriptIndexTask{TenantID: 1, VideoID: "42"}
	b := tasks.TranscriptIndexTask{TenantID: 2, VideoID: "42"}
	if AttemptsKey(a) == AttemptsKey(b) {
		t.Fatalf("keys for different tenants collide: %s", AttemptsKey(a))
	}
	for i := 0; i < MaxAttempts-1; i++ {
		_, _ = RecordFailure(context.Background(), rdb, a)
	}
	if giveUp, _ := RecordFailure(context.Background(), rdb, b); giveUp {
		t.Fatalf("failures of one tenant must not count for another")
	}
}

func TestRecordFailureRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: time.Second})
	defer rdb.Close()
	mr.Close()

	if _, err := RecordFailure(context.Background(), rdb, tasks.TranscriptIndexTask{TenantID: 1, VideoID: "v"}); err == nil {
		t.Fatalf("expected error when redis is unavailable")
	}
}

type flakyProcessor struct {
	failures int
	calls    int
}

func (p *flakyProcessor) Process(_ context.Context, _ tasks.TranscriptIndexTask) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("es unavailable")
	}
	return nil
}

func TestProcessWithRetry(t *testing.T) {
	task := tasks.TranscriptIndexTask{TenantID: 1, VideoID: "42"}
	tests := []struct {
		name         string
		failures     int
		wantAttempts int
		wantErr      bool
	}{
		{name: "first try", failures: 0, wantAttempts: 1},
		{name: "recovers in place", failures: MaxAttempts - 1, wantAttempts: MaxAttempts},
		{name: "gives up", failures: 100, wantAttempts: MaxAttempts, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &flakyProcessor{failures: tt.failures}
			attempts, err := processWithRetry(context.Background(), proc, task, retryPolicy{maxAttempts: MaxAttempts, backoff: time.Millisecond})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if attempts != tt.wantAttempts || proc.calls != tt.wantAttempts {
				t.Fatalf("attempts = %d, calls = %d, want %d", attempts, proc.calls, tt.wantAttempts)
			}
		})
	}
}

func TestProcessWithRetryHonoursFailuresFromEarlierRuns(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	task := tasks.TranscriptIndexTask{TenantID: 1, VideoID: "42"}
	// 上一个进程已经失败了 MaxAttempts-1 次
	for i := 0; i < MaxAttempts-1; i++ {
		_, _ = RecordFailure(ctx, rdb, task)
	}

	proc := &flakyProcessor{failures: 100}
	attempts, err := processWithRetry(ctx, proc, task, retryPolicy{
		maxAttempts: MaxAttempts,
		backoff:     time.Millisecond,
		recordFailure: func(ctx context.Context, task tasks.TranscriptIndexTask) (bool, error) {
			return RecordFailure(ctx, rdb, task)
		},
	})
	if err == nil || attempts != 1 {
		t.Fatalf("attempts = %d, err = %v, want give up after 1 attempt", attempts, err)
	}
}

func TestProcessWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	proc := &flakyProcessor{failures: 100}
	done := make(chan error, 1)
	go func() {
		_, err := processWithRetry(ctx, proc, tasks.TranscriptIndexTask{TenantID: 1, VideoID: "v"}, retryPolicy{maxAttempts: MaxAttempts, backoff: time.Hour})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("retry loop did not stop after cancel")
	}
}

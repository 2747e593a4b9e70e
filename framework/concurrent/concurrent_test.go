package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestForEachWithLimit_Success(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var sum int64

	err := ForEachWithLimit(context.Background(), items, 2, func(ctx context.Context, item int) error {
		atomic.AddInt64(&sum, int64(item))
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if sum != 15 {
		t.Errorf("expected sum 15, got %d", sum)
	}
}

func TestForEachWithLimit_EmptySlice(t *testing.T) {
	err := ForEachWithLimit(context.Background(), []int{}, 3, func(ctx context.Context, item int) error {
		t.Error("should not be called")
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestForEachWithLimit_AttemptsEveryItem(t *testing.T) {
	items := []int{1, 2, 3}
	errTwo := errors.New("two")
	errThree := errors.New("three")
	var calls int64

	err := ForEachWithLimit(context.Background(), items, 1, func(ctx context.Context, item int) error {
		atomic.AddInt64(&calls, 1)
		switch item {
		case 2:
			return errTwo
		case 3:
			return errThree
		}
		return nil
	})

	if !errors.Is(err, errTwo) || !errors.Is(err, errThree) {
		t.Errorf("expected both errors joined, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestForEachWithLimit_Concurrency(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	var maxConcurrent int64
	var current int64

	err := ForEachWithLimit(context.Background(), items, 3, func(ctx context.Context, item int) error {
		c := atomic.AddInt64(&current, 1)
		for {
			m := atomic.LoadInt64(&maxConcurrent)
			if c <= m || atomic.CompareAndSwapInt64(&maxConcurrent, m, c) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if maxConcurrent > 3 {
		t.Errorf("expected max concurrency 3, got %d", maxConcurrent)
	}
}

func TestForEachWithLimit_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int64
	err := ForEachWithLimit(ctx, []int{1, 2, 3}, 2, func(ctx context.Context, item int) error {
		atomic.AddInt64(&calls, 1)
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no calls after cancellation, got %d", calls)
	}
}

func TestMapWithLimit_PreservesOrder(t *testing.T) {
	items := []int{5, 4, 3, 2, 1}

	results, err := MapWithLimit(context.Background(), items, 5, func(ctx context.Context, item int) (int, error) {
		time.Sleep(time.Duration(item) * time.Millisecond)
		return item * 10, nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for i, item := range items {
		if results[i] != item*10 {
			t.Errorf("results[%d] = %d, want %d", i, results[i], item*10)
		}
	}
}

func TestMapWithLimit_PartialResults(t *testing.T) {
	testErr := errors.New("boom")

	results, err := MapWithLimit(context.Background(), []string{"a", "b"}, 2, func(ctx context.Context, item string) (string, error) {
		if item == "b" {
			return "", testErr
		}
		return item + "!", nil
	})

	if !errors.Is(err, testErr) {
		t.Errorf("expected joined error to contain boom, got %v", err)
	}
	if results[0] != "a!" {
		t.Errorf("expected first result to survive, got %q", results[0])
	}
}

func TestGo_Wait(t *testing.T) {
	task := Go(context.Background(), func(ctx context.Context) (string, error) {
		return "delivered", nil
	})

	got, err := task.Wait(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "delivered" {
		t.Errorf("expected result 'delivered', got %q", got)
	}

	select {
	case <-task.Done():
	default:
		t.Error("expected Done to be closed after Wait returned the result")
	}
}

func TestGo_Error(t *testing.T) {
	testErr := errors.New("remote unavailable")
	task := Go(context.Background(), func(ctx context.Context) (int, error) {
		return 0, testErr
	})

	if _, err := task.Wait(context.Background()); !errors.Is(err, testErr) {
		t.Errorf("expected task error, got %v", err)
	}
}

func TestGo_WaitTimeoutLeavesTaskRunning(t *testing.T) {
	release := make(chan struct{})
	task := Go(context.Background(), func(ctx context.Context) (int, error) {
		<-release
		return 7, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := task.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	close(release)
	got, err := task.Wait(context.Background())
	if err != nil || got != 7 {
		t.Errorf("expected 7, nil after release, got %d, %v", got, err)
	}
}

func TestGo_DetachedFromCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})

	task := Go(ctx, func(ctx context.Context) (error, error) {
		close(started)
		<-release
		return ctx.Err(), nil
	})

	<-started
	cancel()
	close(release)

	taskCtxErr, err := task.Wait(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if taskCtxErr != nil {
		t.Errorf("expected task context to survive caller cancellation, got %v", taskCtxErr)
	}
}

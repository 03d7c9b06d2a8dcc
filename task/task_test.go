package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTaskExecuteSetsResult(t *testing.T) {
	tk := New("probe", func(ctx context.Context, t *Task) (any, error) {
		return 42, nil
	})
	if tk.Status() != StatusReady {
		t.Fatalf("Status = %v, want Ready", tk.Status())
	}

	tk.execute(context.Background())

	if tk.Status() != StatusFinished {
		t.Fatalf("Status = %v, want Finished", tk.Status())
	}
	result, err := tk.Join(context.Background())
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if result != 42 {
		t.Fatalf("result = %v, want 42", result)
	}
}

func TestTaskExecutePropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	tk := New("fail", func(ctx context.Context, t *Task) (any, error) {
		return nil, wantErr
	})
	tk.execute(context.Background())

	if _, err := tk.Join(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("Join err = %v, want %v", err, wantErr)
	}
}

func TestTaskWaitTimeout(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	tk := New("slow", func(ctx context.Context, t *Task) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	go tk.execute(context.Background())
	<-started

	ok, err := tk.Wait(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if ok {
		t.Fatalf("Wait should have timed out")
	}

	close(release)
	if ok, err := tk.Wait(context.Background(), time.Second); !ok || err != nil {
		t.Fatalf("Wait after release: ok=%v err=%v", ok, err)
	}
}

func TestTaskWaitContextCancelled(t *testing.T) {
	release := make(chan struct{})
	tk := New("blocked", func(ctx context.Context, t *Task) (any, error) {
		<-release
		return nil, nil
	})
	go tk.execute(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tk.Wait(ctx, 0); err == nil {
		t.Fatalf("expected context.Canceled")
	}
	close(release)
}

func TestTaskProgressDoesNotPanic(t *testing.T) {
	tk := New("upload", func(ctx context.Context, t *Task) (any, error) {
		t.Progress("Uploading", 10, 100)
		return nil, nil
	})
	tk.execute(context.Background())
}

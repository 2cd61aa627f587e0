package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCalculateDelay(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{
			name:    "fixed stays constant",
			policy:  Policy{InitialDelay: time.Second, MaxDelay: time.Minute, BackoffStrategy: BackoffFixed},
			attempt: 3,
			want:    time.Second,
		},
		{
			name:    "linear grows with attempt",
			policy:  Policy{InitialDelay: time.Second, MaxDelay: time.Minute, BackoffStrategy: BackoffLinear},
			attempt: 3,
			want:    3 * time.Second,
		},
		{
			name:    "exponential doubles",
			policy:  Policy{InitialDelay: time.Second, MaxDelay: time.Minute, BackoffStrategy: BackoffExponential},
			attempt: 4,
			want:    8 * time.Second,
		},
		{
			name:    "capped at max delay",
			policy:  Policy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffStrategy: BackoffExponential},
			attempt: 10,
			want:    5 * time.Second,
		},
		{
			name:    "attempt zero has no delay",
			policy:  Policy{InitialDelay: time.Second, BackoffStrategy: BackoffFixed},
			attempt: 0,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.CalculateDelay(tt.attempt); got != tt.want {
				t.Fatalf("CalculateDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	policy := Policy{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffStrategy: BackoffFixed}

	calls := 0
	err := policy.Execute(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestExecuteReturnsLastError(t *testing.T) {
	policy := UploadPolicy()
	policy.InitialDelay = time.Millisecond
	policy.MaxDelay = time.Millisecond

	calls := 0
	wantErr := errors.New("upload rejected")
	err := policy.Execute(context.Background(), func(context.Context, int) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 for the upload policy", calls)
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	policy := Policy{MaxRetries: 5, InitialDelay: time.Hour, BackoffStrategy: BackoffFixed}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := policy.Execute(ctx, func(context.Context, int) error {
		return errors.New("always fails")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestExecuteWithResult(t *testing.T) {
	policy := Policy{MaxRetries: 1, InitialDelay: time.Millisecond, BackoffStrategy: BackoffFixed}

	got, err := ExecuteWithResult(context.Background(), policy, func(ctx context.Context, attempt int) (string, error) {
		if attempt == 0 {
			return "", errors.New("transient")
		}
		return "file-123", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "file-123" {
		t.Fatalf("got %q", got)
	}
}

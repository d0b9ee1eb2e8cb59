package scheduler

import (
	"context"
	"testing"
	"time"

	"coursepay_backend/internals/configs"
	"coursepay_backend/internals/features/payment/zoyktech/service"
)

type countingRunner struct{ calls chan struct{} }

func (r *countingRunner) RunOnce(context.Context) (service.SweepReport, error) {
	select {
	case r.calls <- struct{}{}:
	default:
	}
	return service.SweepReport{}, nil
}

func TestStartSweepCronDisabled(t *testing.T) {
	t.Parallel()

	c, err := StartSweepCron(configs.SweepConfig{Enabled: false, Schedule: "@every 1s"}, &countingRunner{})
	if err != nil || c != nil {
		t.Fatalf("disabled sweep: cron=%v err=%v, want nil, nil", c, err)
	}
}

func TestStartSweepCronRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	if _, err := StartSweepCron(configs.SweepConfig{Enabled: true, Schedule: "not a schedule"}, &countingRunner{}); err == nil {
		t.Fatal("expected an error for an invalid schedule")
	}
}

func TestStartSweepCronRuns(t *testing.T) {
	t.Parallel()

	r := &countingRunner{calls: make(chan struct{}, 1)}
	c, err := StartSweepCron(configs.SweepConfig{Enabled: true, Schedule: "@every 1s"}, r)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer StopSweepCron(context.Background(), c)

	select {
	case <-r.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not run")
	}
}

func TestJobTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec string
		want time.Duration
	}{
		{"@every 5m", 5*time.Minute - 5*time.Second},
		{"@every 1s", 4 * time.Minute},
		{"*/10 * * * *", 4 * time.Minute},
		{"garbage", 4 * time.Minute},
	}
	for _, tt := range tests {
		if got := jobTimeout(tt.spec); got != tt.want {
			t.Errorf("jobTimeout(%q) = %s, want %s", tt.spec, got, tt.want)
		}
	}
}

package workers

import (
	"context"
	"gym-chat/mocks"
	"gym-chat/observability"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDedupSweepWorker_SweepsOnTick(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	dedup := mocks.NewMockIDeduplicator(ctrl)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	swept := make(chan struct{}, 1)
	dedup.EXPECT().Sweep(gomock.Any()).DoAndReturn(func(time.Time) int {
		select {
		case swept <- struct{}{}:
		default:
		}
		return 2
	}).MinTimes(1)

	worker := NewDedupSweepWorker(logs.GetLoggerFromLevel(slog.LevelDebug), dedup, metrics, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	select {
	case <-swept:
	case <-time.After(time.Second):
		req.Fail("sweep never happened")
	}
	cancel()
	req.NoError(<-done)
	req.GreaterOrEqual(testutil.ToFloat64(metrics.DedupEntriesSwept), float64(2))
}

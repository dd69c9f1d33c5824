package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	tradeerrors "github.com/mirrorlabs/copytrader/pkg/errors"
	"github.com/mirrorlabs/copytrader/pkg/logger"
	"github.com/mirrorlabs/copytrader/pkg/testutils"
)

func init() {
	logger.Init(true)
}

func newTestClient(maxAttempts int, delays *[]time.Duration) *Client {
	return New(Config{
		MaxAttempts:    maxAttempts,
		RequestTimeout: 2 * time.Second,
		Sleep: func(d time.Duration) {
			if delays != nil {
				*delays = append(*delays, d)
			}
		},
	})
}

func TestGet_SucceedsAfterServerErrors(t *testing.T) {
	server, calls := testutils.CreateSequenceServer(
		[]int{500, 500, 200},
		[]string{"", "", `{"ok": true}`},
	)
	defer server.Close()

	var delays []time.Duration
	client := newTestClient(3, &delays)

	body, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok": true}`, string(body))
	require.Equal(t, 3, *calls)
	require.Len(t, delays, 2)
}

func TestGet_ClientErrorIsFinal(t *testing.T) {
	server, calls := testutils.CreateSequenceServer([]int{404}, []string{"not found"})
	defer server.Close()

	client := newTestClient(3, nil)

	_, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)
	require.Equal(t, 1, *calls, "4xx must not be retried")
	require.True(t, tradeerrors.IsKind(err, tradeerrors.KindAPI))
	require.False(t, tradeerrors.IsRetryable(err))
}

func TestGet_ServerErrorExhaustsBudget(t *testing.T) {
	server, calls := testutils.CreateSequenceServer([]int{503}, []string{"unavailable"})
	defer server.Close()

	client := newTestClient(3, nil)

	_, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)
	require.Equal(t, 3, *calls)
	require.True(t, tradeerrors.IsKind(err, tradeerrors.KindAPI))
	require.True(t, tradeerrors.IsRetryable(err), "terminal 5xx stays retryable")
}

func TestGet_TransportErrorYieldsNetworkError(t *testing.T) {
	// Nothing listens here; connections are refused immediately.
	client := newTestClient(2, nil)

	_, err := client.Get(context.Background(), "http://127.0.0.1:1")
	require.Error(t, err)
	require.True(t, tradeerrors.IsKind(err, tradeerrors.KindNetwork))
	require.True(t, tradeerrors.IsRetryable(err))
}

func TestBackoffDelay_Bounds(t *testing.T) {
	// delay(k) = min(1s * 2^(k-1) + U[0,1s), 30s)
	for attempt := 1; attempt <= 10; attempt++ {
		base := time.Second << (attempt - 1)
		if base > maxDelay {
			base = maxDelay
		}
		for i := 0; i < 20; i++ {
			delay := backoffDelay(attempt)
			require.GreaterOrEqual(t, delay, minDur(base, maxDelay))
			require.LessOrEqual(t, delay, maxDelay)
			if base+time.Second < maxDelay {
				require.Less(t, delay, base+time.Second)
			}
		}
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

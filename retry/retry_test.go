package retry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mealkeeper/go-grocery-client/retry"
	"github.com/mealkeeper/go-grocery-client/transport"
	"github.com/mealkeeper/go-grocery-client/transport/transportfakes"
)

func alwaysFail(kind transport.Kind, status int) *transportfakes.FakeDoer {
	doer := transportfakes.NewFakeDoer()
	doer.Handle(func(context.Context, *transport.Request) (*transport.Response, error) {
		return nil, transport.NewError(kind, status, "scripted failure", nil)
	})
	return doer
}

func noSleep(recorded *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*recorded = append(*recorded, d)
		return nil
	}
}

func TestRetryCapOnRateLimited(t *testing.T) {
	doer := alwaysFail(transport.KindRateLimited, 429)
	var delays []time.Duration
	policy, err := retry.NewPolicy(doer, retry.WithSleep(noSleep(&delays)))
	require.NoError(t, err)

	_, err = policy.Do(context.Background(), &transport.Request{Path: "/x"})
	require.Error(t, err)
	require.Equal(t, transport.KindRateLimited, transport.KindOf(err))

	require.Len(t, doer.Calls(), retry.DefaultMaxAttempts, "attempted at most maxAttempts times")
	require.Len(t, delays, retry.DefaultMaxAttempts-1)
	for i := 1; i < len(delays); i++ {
		require.Greater(t, delays[i], delays[i-1], "delays strictly increase")
	}
}

func TestRetryDelaysDouble(t *testing.T) {
	doer := alwaysFail(transport.KindNetwork, 0)
	var delays []time.Duration
	policy, err := retry.NewPolicy(doer,
		retry.WithMaxAttempts(4),
		retry.WithBaseDelay(100*time.Millisecond),
		retry.WithSleep(noSleep(&delays)),
	)
	require.NoError(t, err)

	_, err = policy.Do(context.Background(), &transport.Request{Path: "/x"})
	require.Error(t, err)
	require.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}, delays)
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	doer := transportfakes.NewFakeDoer()
	doer.Respond(nil, transport.NewError(transport.KindServer, 503, "unavailable", nil))
	doer.Respond(&transport.Response{Status: 200, Body: []byte(`{}`)}, nil)

	var delays []time.Duration
	policy, err := retry.NewPolicy(doer, retry.WithSleep(noSleep(&delays)))
	require.NoError(t, err)

	resp, err := policy.Do(context.Background(), &transport.Request{Path: "/x"})
	require.NoError(t, err)
	require.Equal(t, 200, resp.Status)
	require.Len(t, doer.Calls(), 2)
}

func TestRetryNeverTouchesNonTransientKinds(t *testing.T) {
	for _, kind := range []transport.Kind{
		transport.KindValidation,
		transport.KindConflict,
		transport.KindForbidden,
		transport.KindUnauthorized,
		transport.KindCancelled,
		transport.KindUnknown,
	} {
		t.Run(string(kind), func(t *testing.T) {
			doer := alwaysFail(kind, 0)
			policy, err := retry.NewPolicy(doer)
			require.NoError(t, err)

			_, err = policy.Do(context.Background(), &transport.Request{Path: "/x"})
			require.Error(t, err)
			require.Equal(t, kind, transport.KindOf(err))
			require.Len(t, doer.Calls(), 1, "exactly one attempt")
		})
	}
}

func TestRetryCancelledDuringBackoff(t *testing.T) {
	doer := alwaysFail(transport.KindNetwork, 0)
	policy, err := retry.NewPolicy(doer, retry.WithSleep(func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}))
	require.NoError(t, err)

	_, err = policy.Do(context.Background(), &transport.Request{Path: "/x"})
	require.Error(t, err)
	require.Equal(t, transport.KindCancelled, transport.KindOf(err))
}

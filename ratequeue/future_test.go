/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package ratequeue

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestFutureResolvedOnce(t *testing.T) {
	var calls atomic.Int32
	f := newFuture(func(Result) {
		calls.Inc()
	})

	f.resolve(Result{StatusCode: http.StatusOK})
	f.resolve(Result{StatusCode: http.StatusTeapot})

	res, ok := f.Result()
	require.True(t, ok)
	require.Equal(t, http.StatusOK, res.StatusCode, "the first resolution should win")
	require.EqualValues(t, 1, calls.Load(), "continuation should be invoked exactly once")
}

func TestFutureResultBeforeResolution(t *testing.T) {
	f := newFuture(nil)
	_, ok := f.Result()
	require.False(t, ok)
}

func TestFutureWait(t *testing.T) {
	t.Run("wait returns the settled result", func(t *testing.T) {
		f := newFuture(nil)
		go func() {
			time.Sleep(50 * time.Millisecond)
			f.resolve(Result{StatusCode: http.StatusNoContent})
		}()
		res, err := f.Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, res.StatusCode)
	})

	t.Run("wait is interrupted by context", func(t *testing.T) {
		f := newFuture(nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.Wait(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("wait reports transport error result", func(t *testing.T) {
		wantErr := errors.New("connection refused")
		f := newFuture(nil)
		f.resolve(Result{Err: wantErr})
		res, err := f.Wait(context.Background())
		require.NoError(t, err)
		require.ErrorIs(t, res.Err, wantErr)
	})
}

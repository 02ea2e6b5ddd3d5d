// internal/browser/context_utils_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "testKey"
	const value = "testValue"

	t.Run("InheritsValuesFromPrimary", func(t *testing.T) {
		ctx1 := context.WithValue(context.Background(), key, value)
		ctx2 := context.Background()

		combined, cancel := CombineContext(ctx1, ctx2)
		defer cancel()

		assert.Equal(t, value, combined.Value(key), "combined context should carry ctx1 values")
		assert.NoError(t, combined.Err())
	})

	t.Run("CancelledByPrimary", func(t *testing.T) {
		ctx1, cancel1 := context.WithCancel(context.Background())
		ctx2 := context.Background()

		combined, cancel := CombineContext(ctx1, ctx2)
		defer cancel()

		cancel1()
		assert.Eventually(t, func() bool {
			return combined.Err() != nil
		}, 100*time.Millisecond, 10*time.Millisecond)
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("CancelledBySecondary", func(t *testing.T) {
		ctx1 := context.Background()
		ctx2, cancel2 := context.WithCancel(context.Background())

		combined, cancel := CombineContext(ctx1, ctx2)
		defer cancel()

		cancel2()
		assert.Eventually(t, func() bool {
			return combined.Err() != nil
		}, 100*time.Millisecond, 10*time.Millisecond)
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("CancelFuncStopsCombined", func(t *testing.T) {
		combined, cancel := CombineContext(context.Background(), context.Background())
		cancel()
		<-combined.Done()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}

// Package testutil holds helpers shared by the pool tests: a zap logger bound
// to the test, a recording factory and counter assertions.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/pooling/pkg/pool"
)

// TestLogger returns a debug logger writing through t.Log.
func TestLogger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel))
}

// TestContext returns a context that ends after 30 seconds or when the test
// finishes, whichever comes first.
func TestContext(t testing.TB) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx, cancel
}

// AssertEventually polls condition every 5ms and fails the test if it does
// not hold within timeout.
func AssertEventually(t testing.TB, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()
	if !assert.Eventually(t, condition, timeout, 5*time.Millisecond, msg) {
		t.FailNow()
	}
}

// AssertCounts checks the instance counters of p.
func AssertCounts(t testing.TB, p pool.Pool, all, active, passive int) bool {
	t.Helper()
	got := [3]int{p.CountAll(), p.CountActive(), p.CountPassive()}
	return assert.Equal(t, [3]int{all, active, passive}, got, "all, active, passive of pool %v", p.Key())
}

package circuit_breaker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Astemirdum/lending-service/pkg/circuit_breaker"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func Test_circuitBreaker_Call(t *testing.T) {
	t.Parallel()

	successfulService := func() error { return nil }
	errService := errors.New("service error")
	failingService := func() error { return errService }

	type step struct {
		advance   time.Duration
		service   func() error
		times     int
		wantErr   error
		wantState circuit_breaker.Status
	}

	tests := []struct {
		name  string
		steps []step
	}{
		{
			name: "successful calls keep breaker closed",
			steps: []step{
				{service: successfulService, times: 20, wantState: circuit_breaker.Closed},
			},
		},
		{
			name: "opens at failure percentile and short-circuits",
			steps: []step{
				{service: successfulService, times: 10, wantState: circuit_breaker.Closed},
				{service: failingService, times: 2, wantErr: errService, wantState: circuit_breaker.Closed},
				{service: failingService, times: 1, wantErr: errService, wantState: circuit_breaker.Open},
				{service: successfulService, times: 5, wantErr: circuit_breaker.ErrOpenCB, wantState: circuit_breaker.Open},
			},
		},
		{
			name: "recovers through half-open",
			steps: []step{
				{service: failingService, times: 3, wantErr: errService, wantState: circuit_breaker.Open},
				{advance: 3 * time.Second, service: successfulService, times: 2, wantState: circuit_breaker.HalfOpen},
				{service: successfulService, times: 1, wantState: circuit_breaker.Closed},
			},
		},
		{
			name: "half-open failure opens again",
			steps: []step{
				{service: failingService, times: 3, wantErr: errService, wantState: circuit_breaker.Open},
				{advance: 3 * time.Second, service: failingService, times: 1, wantErr: errService, wantState: circuit_breaker.Open},
				{service: successfulService, times: 1, wantErr: circuit_breaker.ErrOpenCB, wantState: circuit_breaker.Open},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
			cb := circuit_breaker.New(10, 2*time.Second, 0.30, 3, circuit_breaker.WithClock(clock.Now))

			for _, s := range tt.steps {
				clock.Advance(s.advance)
				for i := 0; i < s.times; i++ {
					err := cb.Call(s.service)
					if s.wantErr == nil {
						require.NoError(t, err)
					} else {
						require.ErrorIs(t, err, s.wantErr)
					}
				}
				require.Equal(t, s.wantState, cb.State(), s.wantState.String())
			}
		})
	}
}

func Test_circuitBreaker_Reset(t *testing.T) {
	t.Parallel()
	cb := circuit_breaker.New(2, time.Hour, 0.5, 1)
	require.Error(t, cb.Call(func() error { return errors.New("boom") }))
	require.Equal(t, circuit_breaker.Open, cb.State())

	cb.Reset()
	require.Equal(t, circuit_breaker.Closed, cb.State())
	require.NoError(t, cb.Call(func() error { return nil }))
}

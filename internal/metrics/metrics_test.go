package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCart(reg)

	m.ObserveMutation("add", ResultOK)
	m.ObserveMutation("add", ResultOK)
	m.ObserveMutation("update", ResultRejected)
	m.ObserveConflict()
	m.ObserveBreaker("product-catalog", gobreaker.StateClosed, gobreaker.StateOpen)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Mutations.WithLabelValues("add", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("update", ResultRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Conflicts))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState))
}

func TestCart_NilSafe(t *testing.T) {
	var m *Cart

	assert.NotPanics(t, func() {
		m.ObserveMutation("add", ResultOK)
		m.ObserveConflict()
		m.ObserveBreaker("x", gobreaker.StateClosed, gobreaker.StateOpen)
	})
}

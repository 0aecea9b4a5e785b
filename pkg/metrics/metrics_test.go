package metrics

import (
	"testing"
	"time"

	"github.com/Layr-Labs/walletlink-go/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.ObserveDispatch(types.CommandKindSignMessage, "signed")
	m.ObserveDispatch(types.CommandKindSignMessage, "signed")
	m.ObserveDispatch(types.CommandKindSignTransaction, "failed")
	m.ObserveIgnored(ReasonInvalid)
	m.ObserveSign(types.CommandKindSignMessage, 5*time.Millisecond)
	m.ObserveBridgeRequest("/open", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatched.WithLabelValues("sign-message", "signed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatched.WithLabelValues("sign-transaction", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ignored.WithLabelValues(ReasonInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bridgeRequests.WithLabelValues("/open", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.signDuration))

	t.Run("Should fail on duplicate registration", func(t *testing.T) {
		_, err := NewMetrics(reg)
		assert.Error(t, err)
	})
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDispatch(types.CommandKindSignMessage, "signed")
		m.ObserveIgnored(ReasonNoSigner)
		m.ObserveSign(types.CommandKindSignMessage, time.Second)
		m.ObserveBridgeRequest("/health", 200)
	})
}

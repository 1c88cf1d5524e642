// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	assert.NotNil(t, EventsReceived)
	assert.NotNil(t, EventsDropped)
	assert.NotNil(t, RequestsCompleted)
	assert.NotNil(t, DispatchDuration)
	assert.NotNil(t, PublishOutcomes)
	assert.NotNil(t, ReassemblyPending)
	assert.NotNil(t, RelaysConnected)
}

func TestMetricsIncrement(t *testing.T) {
	EventsReceived.Inc()
	EventsDropped.WithLabelValues("VERIFY_FAIL").Inc()
	RequestsCompleted.Inc()
	DispatchDuration.Observe(0.01)
	PublishOutcomes.WithLabelValues("success").Inc()
	ReassemblyPending.Set(3)
	RelaysConnected.Set(2)

	assert.Equal(t, 1, testutil.CollectAndCount(EventsReceived))
	assert.Equal(t, 1, testutil.CollectAndCount(EventsDropped))
	assert.Equal(t, 1, testutil.CollectAndCount(PublishOutcomes))
}

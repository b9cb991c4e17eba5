package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSync_RecordsDurationAndFailures(t *testing.T) {
	r := New()

	r.ObserveSync("planets", 5*time.Millisecond, nil)
	r.ObserveSync("planets", 10*time.Millisecond, assertError{})

	count, err := testutil.GatherAndCount(r.Registry(), "supersave_schema_sync_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	failures, err := testutil.GatherAndCount(r.Registry(), "supersave_schema_sync_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
}

func TestObserveWrite_LabelsByEntityAndOperation(t *testing.T) {
	r := New()
	r.ObserveWrite("widgets", "create")

	count, err := testutil.GatherAndCount(r.Registry(), "supersave_record_writes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilRecorder_IsSafeToCall(t *testing.T) {
	var r *Recorder
	r.ObserveSync("planets", time.Millisecond, nil)
	r.ObserveWrite("planets", "create")
	assert.Nil(t, r.Registry())
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

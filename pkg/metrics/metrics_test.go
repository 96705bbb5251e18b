package metrics

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePrometheus(t *testing.T) {
	RecordsWritten.WithLabelValues("state").Inc()
	ReplayQuanta.WithLabelValues("match").Inc()

	var buf bytes.Buffer
	require.NoError(t, WritePrometheus(&buf))
	out := buf.String()
	assert.Contains(t, out, "tracelog_records_written_total")
	assert.Contains(t, out, `kind="state"`)
	assert.Contains(t, out, "replay_quanta_total")
	assert.Contains(t, out, "tracelog_queue_depth")
}

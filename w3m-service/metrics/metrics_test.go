package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestEventRecord(t *testing.T) {
	registry := NewRegistry()
	ev := NewEvent(With(registry), "w3m", "deploy", "run", "deploy run")

	ev.Record()
	ev.Record()
	require.Equal(t, 2.0, testutil.ToFloat64(ev.Total))
	require.Greater(t, testutil.ToFloat64(ev.LastTime), 0.0)
}

func TestEventVecRecord(t *testing.T) {
	registry := NewRegistry()
	ev := NewEventVec(With(registry), "w3m", "txmgr", "confirm", "tx confirm", []string{"status"})

	ev.Record("success")
	ev.Record("failed")
	ev.Record("success")
	require.Equal(t, 2.0, testutil.ToFloat64(ev.Total.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(ev.Total.WithLabelValues("failed")))
}

func TestCLIConfigCheck(t *testing.T) {
	require.NoError(t, CLIConfig{}.Check())
	require.NoError(t, CLIConfig{Enabled: true, ListenAddr: "127.0.0.1", ListenPort: 7300}.Check())
	require.Error(t, CLIConfig{Enabled: true, ListenPort: 70000}.Check())
}

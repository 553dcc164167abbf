package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrementWithoutPanicking(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncSent("ping")
	m.IncRecv("get_peers")
	m.IncDupe("find_node")
	m.SetRoutingTableSize(42)
	m.SetCandidatePoolSize(1000)
	m.IncSelfPromotion()
	m.IncMetadataFetch(FetchResultSuccess)
	m.IncUTPSession(UTPStateConnected)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

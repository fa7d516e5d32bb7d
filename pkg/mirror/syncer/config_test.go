package syncer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/kamisync/pkg/mirror/syncer"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := syncer.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, uint32(20), cfg.NumChunks)
	assert.Equal(t, "skip", cfg.ConflictPolicy)
	assert.Equal(t, time.Duration(0), cfg.SyncInterval)
	assert.Equal(t, 5*time.Minute, cfg.SyncTimeout)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("KAMIGAZE_NUM_CHUNKS", "4")
	t.Setenv("KAMIGAZE_CONFLICT_POLICY", "RESYNC")
	t.Setenv("KAMIGAZE_SYNC_INTERVAL", "30s")

	cfg, err := syncer.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, uint32(4), cfg.NumChunks)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
	assert.Len(t, cfg.Options(), 2)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero chunks", "KAMIGAZE_NUM_CHUNKS", "0"},
		{"unknown policy", "KAMIGAZE_CONFLICT_POLICY", "ignore"},
		{"negative interval", "KAMIGAZE_SYNC_INTERVAL", "-1s"},
		{"zero timeout", "KAMIGAZE_SYNC_TIMEOUT", "0s"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := syncer.LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestConflictPolicy_String(t *testing.T) {
	t.Parallel()

	for _, p := range []syncer.ConflictPolicy{syncer.ConflictSkip, syncer.ConflictResync} {
		parsed, err := syncer.ParseConflictPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	assert.Equal(t, "undefined", syncer.ConflictPolicy(9).String())
}

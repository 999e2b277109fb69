package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEmptyConfig_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg := EmptyTuningConfig()
	assert.Equal(t, 0.5, cfg.GetCentreX())
	assert.Equal(t, 0.12, cfg.GetCentreRadius())
	assert.Equal(t, 10, cfg.GetConvictionMax())
	assert.Equal(t, 3, cfg.GetConvictionInOnDetect())
	assert.Equal(t, 0.65, cfg.GetBaseFillEmptyThreshold())
	assert.Equal(t, 90*time.Second, cfg.GetAutoOffTimeout())
	require.NoError(t, cfg.Validate())
}

func TestLoad_PartialOverride(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "tuning.json", `{"centre_radius": 0.2, "query_timeout": "3s"}`)
	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.2, cfg.GetCentreRadius())
	assert.Equal(t, 3*time.Second, cfg.GetQueryTimeout())
	// Everything else keeps its default.
	assert.Equal(t, 0.35, cfg.GetSmoothingAlpha())
	assert.Equal(t, 100, cfg.GetGridRows())
}

func TestLoad_RejectsNonJSONExtension(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "tuning.yaml", `{}`)
	_, err := LoadTuningConfig(path)
	assert.ErrorContains(t, err, ".json extension")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"radius out of range":   `{"centre_radius": 0.6}`,
		"alpha zero":            `{"smoothing_alpha": 0}`,
		"thresholds inverted":   `{"empty_threshold": 0.5}`,
		"conviction step high":  `{"conviction_in_on_detect": 99}`,
		"bad timeout":           `{"query_timeout": "soon"}`,
		"relax factor too high": `{"sharpness_relax_factor": 1.0}`,
	}
	for name, content := range cases {
		content := content
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, "tuning.json", content)
			_, err := LoadTuningConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_DefaultsFileMatchesBuiltins(t *testing.T) {
	t.Parallel()

	cfg := MustLoadDefaultConfig()
	empty := EmptyTuningConfig()

	assert.Equal(t, empty.GetCentreRadius(), cfg.GetCentreRadius())
	assert.Equal(t, empty.GetConvictionMax(), cfg.GetConvictionMax())
	assert.Equal(t, empty.GetEmptyThreshold(), cfg.GetEmptyThreshold())
	assert.Equal(t, empty.GetQueryTimeout(), cfg.GetQueryTimeout())
	assert.Equal(t, empty.GetAutoOffTimeout(), cfg.GetAutoOffTimeout())
}

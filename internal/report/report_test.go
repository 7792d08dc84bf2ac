package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"manifestfill/internal/manifest"
)

func sampleOutcomes() []manifest.Outcome {
	return []manifest.Outcome{
		manifest.Submitted(manifest.Record{Row: 2, TripID: "A"}, "click", nil, time.Second),
		manifest.Failed(manifest.Record{Row: 3, TripID: "B"}, manifest.ErrSubmissionUnconfirmed, nil, time.Second),
		manifest.Submitted(manifest.Record{Row: 4, TripID: "C"}, "enter",
			[]manifest.Resolution{{Field: "port_code", Mode: manifest.LastResortMode}}, time.Second),
	}
}

func TestBuild_Summary(t *testing.T) {
	r := Build("run-1", 5, sampleOutcomes())

	assert.Equal(t, Summary{Total: 5, Submitted: 2, Failed: 1, LowConfidence: 1, NotProcessed: 2}, r.Summary)
	assert.True(t, r.Interrupted)
	require.Len(t, r.Failed(), 1)
	assert.Equal(t, "B", r.Failed()[0].TripID)
	// Batch order is preserved.
	assert.Equal(t, []int{2, 3, 4}, []int{r.Items[0].Row, r.Items[1].Row, r.Items[2].Row})
}

func TestSave_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	r := Build("run-2", 3, sampleOutcomes())
	r.StartedAt = time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("ART", -3*3600))
	r.Finalize()
	assert.Equal(t, time.UTC, r.StartedAt.Location())

	yamlPath := filepath.Join(dir, "out", "report.yaml")
	require.NoError(t, r.Save(yamlPath))
	data, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Equal(t, "run-2", fromYAML["run_id"])
	items := fromYAML["items"].([]any)
	first := items[0].(map[string]any)
	assert.Equal(t, "A", first["trip_id"], "outcome fields are inlined")

	jsonPath := filepath.Join(dir, "report.json")
	require.NoError(t, r.Save(jsonPath))
	data, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	var fromJSON struct {
		Summary Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, 1, fromJSON.Summary.Failed)
}

func TestRender(t *testing.T) {
	out := Render(Build("run-3", 4, sampleOutcomes()))
	assert.Contains(t, out, "Batch summary")
	assert.Contains(t, out, "Failed rows")
	assert.Contains(t, out, manifest.ErrSubmissionUnconfirmed.Error())
	assert.Contains(t, out, "not processed")

	line := RowLine(1, 3, sampleOutcomes()[1])
	assert.Contains(t, line, "[2/3] row 3")
	assert.Contains(t, line, "FAIL")
	assert.Contains(t, RowLine(2, 3, sampleOutcomes()[2]), "OK?")
}

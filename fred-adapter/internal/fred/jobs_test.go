package fred

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/plumbing-feed/fred-adapter/pkg/config"
	"github.com/Checker-Finance/plumbing-feed/pkg/model"
)

func TestPresets_AreValid(t *testing.T) {
	for name, job := range Presets {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, name, job.Name)
			require.NoError(t, job.Validate())
		})
	}
}

func TestPresets_Plumbing(t *testing.T) {
	job := Presets["plumbing"]
	assert.Equal(t, "plumbing_data.json", job.Output)
	assert.True(t, job.Indent)
	assert.Equal(t, []string{"SOFR", "EFFR", "IORB", "WALCL", "SOFR_minus_IORB"}, job.Columns())

	starts := map[string]string{}
	for _, s := range job.Series {
		starts[s.ID] = s.Start
	}
	assert.Equal(t, "2018-01-01", starts["SOFR"])
	assert.Equal(t, "2015-01-01", starts["EFFR"])
	assert.Equal(t, "2015-01-01", starts["IORB"])
	assert.Equal(t, "2005-01-01", starts["WALCL"])
}

func TestPresets_TGAKeysRenamed(t *testing.T) {
	assert.Equal(t, []string{"TGA"}, Presets["tga"].Columns())
	assert.Equal(t, "WTREGEN", Presets["tga"].Series[0].ID)
	assert.Equal(t, model.LayoutRows, Presets["tga_rows"].Layout)
	assert.True(t, Presets["repo"].IncludeMeta)
}

func TestSelectJobs(t *testing.T) {
	jobs, err := SelectJobs([]string{"tga", "plumbing", "tga"})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "tga", jobs[0].Name)
	assert.Equal(t, "plumbing", jobs[1].Name)

	_, err = SelectJobs([]string{"plumbing", "gdp"})
	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "FRED_JOBS", cfgErr.Key)
	assert.Contains(t, cfgErr.Reason, "gdp")
}

func TestJobValidate(t *testing.T) {
	valid := func() Job {
		return Job{
			Name:    "t",
			Output:  "t.json",
			Layout:  model.LayoutSeries,
			Series:  []SeriesSpec{{ID: "SOFR", Start: "2018-01-01"}, {ID: "IORB"}},
			Spreads: []SpreadSpec{{Key: "S_minus_I", Minuend: "SOFR", Subtrahend: "IORB"}},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(j *Job)
		reason string
	}{
		{"no output", func(j *Job) { j.Output = "" }, "output"},
		{"bad layout", func(j *Job) { j.Layout = "csv" }, "layout"},
		{"no series", func(j *Job) { j.Series = nil; j.Spreads = nil }, "no series"},
		{"empty id", func(j *Job) { j.Series[1].ID = "" }, "empty id"},
		{"bad start", func(j *Job) { j.Series[0].Start = "01/01/2018" }, "YYYY-MM-DD"},
		{"duplicate key", func(j *Job) { j.Series[1].Key = "SOFR" }, "duplicate"},
		{"unknown spread input", func(j *Job) { j.Spreads[0].Subtrahend = "EFFR" }, "unknown series"},
		{"spread key clash", func(j *Job) { j.Spreads[0].Key = "IORB" }, "duplicated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := valid()
			tt.mutate(&j)
			var cfgErr *config.ConfigurationError
			require.ErrorAs(t, j.Validate(), &cfgErr)
			assert.Contains(t, cfgErr.Reason, tt.reason)
		})
	}
}

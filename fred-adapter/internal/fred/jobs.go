package fred

import (
	"fmt"
	"time"

	"github.com/Checker-Finance/plumbing-feed/fred-adapter/pkg/config"
	"github.com/Checker-Finance/plumbing-feed/pkg/model"
)

const dateLayout = "2006-01-02"

// SeriesSpec declares one upstream series: its FRED id, the first date to
// request and the key it is written under (the id when Key is empty).
type SeriesSpec struct {
	ID          string
	Start       string
	Key         string
	Description string
}

// OutputKey is the key the series is written under.
func (s SeriesSpec) OutputKey() string {
	if s.Key != "" {
		return s.Key
	}
	return s.ID
}

// SpreadSpec declares a derived series Key = Minuend - Subtrahend.
// Minuend and Subtrahend refer to output keys.
type SpreadSpec struct {
	Key        string
	Minuend    string
	Subtrahend string
}

// Job describes one output file.
type Job struct {
	Name        string
	Output      string // file name inside the output directory
	Layout      model.Layout
	Indent      bool
	IncludeMeta bool
	Series      []SeriesSpec
	Spreads     []SpreadSpec
}

// Columns lists the output keys in declaration order, spreads last.
func (j Job) Columns() []string {
	cols := make([]string, 0, len(j.Series)+len(j.Spreads))
	for _, s := range j.Series {
		cols = append(cols, s.OutputKey())
	}
	for _, sp := range j.Spreads {
		cols = append(cols, sp.Key)
	}
	return cols
}

// Validate checks the job definition without touching the network.
func (j Job) Validate() error {
	if j.Output == "" {
		return &config.ConfigurationError{Key: "job " + j.Name, Reason: "output file name is empty"}
	}
	if j.Layout != model.LayoutSeries && j.Layout != model.LayoutRows {
		return &config.ConfigurationError{Key: "job " + j.Name, Reason: fmt.Sprintf("unknown layout %q", j.Layout)}
	}
	if len(j.Series) == 0 {
		return &config.ConfigurationError{Key: "job " + j.Name, Reason: "no series configured"}
	}

	keys := make(map[string]bool)
	for _, s := range j.Series {
		if s.ID == "" {
			return &config.ConfigurationError{Key: "job " + j.Name, Reason: "series with empty id"}
		}
		if s.Start != "" {
			if _, err := time.Parse(dateLayout, s.Start); err != nil {
				return &config.ConfigurationError{Key: "job " + j.Name, Reason: fmt.Sprintf("series %s: start date %q is not YYYY-MM-DD", s.ID, s.Start)}
			}
		}
		k := s.OutputKey()
		if keys[k] {
			return &config.ConfigurationError{Key: "job " + j.Name, Reason: fmt.Sprintf("duplicate output key %q", k)}
		}
		keys[k] = true
	}
	for _, sp := range j.Spreads {
		if !keys[sp.Minuend] || !keys[sp.Subtrahend] {
			return &config.ConfigurationError{Key: "job " + j.Name, Reason: fmt.Sprintf("spread %s references unknown series", sp.Key)}
		}
		if sp.Key == "" || keys[sp.Key] {
			return &config.ConfigurationError{Key: "job " + j.Name, Reason: fmt.Sprintf("spread key %q is empty or duplicated", sp.Key)}
		}
		keys[sp.Key] = true
	}
	return nil
}

// Presets are the outputs the dashboard consumes.
var Presets = map[string]Job{
	"plumbing": {
		Name:   "plumbing",
		Output: "plumbing_data.json",
		Layout: model.LayoutSeries,
		Indent: true,
		Series: []SeriesSpec{
			{ID: "SOFR", Start: "2018-01-01", Description: "Secured Overnight Financing Rate"},
			{ID: "EFFR", Start: "2015-01-01", Description: "Effective Federal Funds Rate"},
			{ID: "IORB", Start: "2015-01-01", Description: "Interest on Reserve Balances"},
			{ID: "WALCL", Start: "2005-01-01", Description: "Fed total assets (balance sheet)"},
		},
		Spreads: []SpreadSpec{
			{Key: "SOFR_minus_IORB", Minuend: "SOFR", Subtrahend: "IORB"},
		},
	},
	"tga": {
		Name:   "tga",
		Output: "tga.json",
		Layout: model.LayoutSeries,
		Series: []SeriesSpec{
			{ID: "WTREGEN", Start: "2015-01-01", Key: "TGA", Description: "Treasury General Account, weekly average"},
		},
	},
	"tga_rows": {
		Name:   "tga_rows",
		Output: "tga_data.json",
		Layout: model.LayoutRows,
		Indent: true,
		Series: []SeriesSpec{
			{ID: "WTREGEN", Start: "2018-01-01", Key: "TGA", Description: "Treasury General Account, weekly average"},
		},
	},
	"repo": {
		Name:        "repo",
		Output:      "repo.json",
		Layout:      model.LayoutSeries,
		IncludeMeta: true,
		Series: []SeriesSpec{
			{ID: "TGCRRATE", Start: "2015-01-01", Description: "Tri-Party General Collateral Rate"},
			{ID: "RRPONTSYD", Start: "2015-01-01", Description: "ON RRP volume (Treasury securities sold)"},
			{ID: "RRPONTSYAWARD", Start: "2015-01-01", Description: "ON RRP award rate"},
		},
	},
}

// SelectJobs resolves job names against Presets, keeping the given order.
func SelectJobs(names []string) ([]Job, error) {
	jobs := make([]Job, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range names {
		job, ok := Presets[name]
		if !ok {
			return nil, &config.ConfigurationError{Key: "FRED_JOBS", Reason: fmt.Sprintf("unknown job %q", name)}
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		if err := job.Validate(); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

package model

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/guregu/null/v6"
)

// TimestampLayout is the format of Document.LastUpdatedUTC.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Layout selects the JSON shape of an output file.
type Layout string

const (
	// LayoutSeries writes {"last_updated_utc": ..., "series": {...}}.
	LayoutSeries Layout = "series"
	// LayoutRows writes a flat array of {"date": ..., "<KEY>": value} rows.
	LayoutRows Layout = "rows"
)

// Observation is a single dated value. An invalid Value means the upstream
// had no data for that date.
type Observation struct {
	Date  string     `json:"date"`
	Value null.Float `json:"value"`
}

// Series holds parallel date/value slices in upstream order.
// Dates and Values always have the same length; use Append to grow it.
type Series struct {
	Dates  []string     `json:"dates"`
	Values []null.Float `json:"values"`
}

// NewSeries builds a Series from observations, preserving their order.
func NewSeries(obs []Observation) Series {
	s := Series{
		Dates:  make([]string, 0, len(obs)),
		Values: make([]null.Float, 0, len(obs)),
	}
	for _, o := range obs {
		s.Append(o.Date, o.Value)
	}
	return s
}

// Append adds one observation.
func (s *Series) Append(date string, value null.Float) {
	s.Dates = append(s.Dates, date)
	s.Values = append(s.Values, value)
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.Dates) }

// Valid returns the number of non-missing observations.
func (s Series) Valid() int {
	n := 0
	for _, v := range s.Values {
		if v.Valid {
			n++
		}
	}
	return n
}

// Lookup indexes the non-missing values by date. When a date repeats the
// first occurrence wins.
func (s Series) Lookup() map[string]float64 {
	m := make(map[string]float64, len(s.Dates))
	for i, d := range s.Dates {
		if !s.Values[i].Valid {
			continue
		}
		if _, seen := m[d]; !seen {
			m[d] = s.Values[i].Float64
		}
	}
	return m
}

// MarshalJSON keeps empty series as [] rather than null.
func (s Series) MarshalJSON() ([]byte, error) {
	type alias struct {
		Dates  []string     `json:"dates"`
		Values []null.Float `json:"values"`
	}
	a := alias{Dates: s.Dates, Values: s.Values}
	if a.Dates == nil {
		a.Dates = []string{}
	}
	if a.Values == nil {
		a.Values = []null.Float{}
	}
	return json.Marshal(a)
}

// Document is the series-layout output file.
type Document struct {
	LastUpdatedUTC string            `json:"last_updated_utc"`
	Series         map[string]Series `json:"series"`
	Meta           map[string]string `json:"meta,omitempty"`
}

// Keys returns the series keys in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d.Series))
	for k := range d.Series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Observations counts observations across all series.
func (d Document) Observations() int {
	n := 0
	for _, s := range d.Series {
		n += s.Len()
	}
	return n
}

// Row is one line of the rows layout: a date plus one value per column.
type Row struct {
	Date    string
	Columns []string
	Values  map[string]null.Float
}

// MarshalJSON writes "date" first, then the columns in their configured order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"date":`)
	b, err := json.Marshal(r.Date)
	if err != nil {
		return nil, err
	}
	buf.Write(b)
	for _, col := range r.Columns {
		buf.WriteByte(',')
		k, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(r.Values[col])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a row back; columns come out sorted.
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Values = make(map[string]null.Float, len(raw))
	r.Columns = r.Columns[:0]
	for k, v := range raw {
		if k == "date" {
			if err := json.Unmarshal(v, &r.Date); err != nil {
				return err
			}
			continue
		}
		var f null.Float
		if err := json.Unmarshal(v, &f); err != nil {
			return err
		}
		r.Values[k] = f
		r.Columns = append(r.Columns, k)
	}
	sort.Strings(r.Columns)
	return nil
}

// Rows flattens series into date rows. columns fixes both which series are
// included and their order within each row. A single column maps one row per
// observation in upstream order; multiple columns are outer-joined on date and
// sorted, with null for a series that has no observation on a date.
func Rows(series map[string]Series, columns []string) []Row {
	if len(columns) == 1 {
		col := columns[0]
		s := series[col]
		rows := make([]Row, 0, s.Len())
		for i, d := range s.Dates {
			rows = append(rows, Row{
				Date:    d,
				Columns: columns,
				Values:  map[string]null.Float{col: s.Values[i]},
			})
		}
		return rows
	}

	var dates []string
	seen := make(map[string]bool)
	for _, col := range columns {
		for _, d := range series[col].Dates {
			if !seen[d] {
				seen[d] = true
				dates = append(dates, d)
			}
		}
	}
	sort.Strings(dates)

	lookups := make(map[string]map[string]null.Float, len(columns))
	for _, col := range columns {
		s := series[col]
		m := make(map[string]null.Float, s.Len())
		for i, d := range s.Dates {
			if _, ok := m[d]; !ok {
				m[d] = s.Values[i]
			}
		}
		lookups[col] = m
	}

	rows := make([]Row, 0, len(dates))
	for _, d := range dates {
		row := Row{Date: d, Columns: columns, Values: make(map[string]null.Float, len(columns))}
		for _, col := range columns {
			row.Values[col] = lookups[col][d]
		}
		rows = append(rows, row)
	}
	return rows
}

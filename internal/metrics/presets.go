package metrics

import (
	"fmt"
	"time"
)

// MetricPreset groups history series shown together.
type MetricPreset struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Series      []string `json:"series"`
	TimeRange   string   `json:"time_range"` // default time range
}

// DefaultPresets are the predefined history queries.
var DefaultPresets = []MetricPreset{
	{
		ID:          "generation",
		Name:        "Generation",
		Description: "Nodes added to the store over time",
		Series:      []string{"generations"},
		TimeRange:   "1h",
	},
	{
		ID:          "diff_overview",
		Name:        "Diff Overview",
		Description: "Diff throughput and latency",
		Series:      []string{"diff_rate", "diff_latency"},
		TimeRange:   "1h",
	},
	{
		ID:          "edit_scripts",
		Name:        "Edit Scripts",
		Description: "Average edit script length",
		Series:      []string{"script_length"},
		TimeRange:   "1h",
	},
}

// GetPreset returns a preset by ID.
func GetPreset(id string) *MetricPreset {
	for i := range DefaultPresets {
		if DefaultPresets[i].ID == id {
			return &DefaultPresets[i]
		}
	}
	return nil
}

// MetricQuery selects history series over a time range.
type MetricQuery struct {
	PresetID  string   `json:"preset_id,omitempty"`
	Series    []string `json:"series"`
	TimeRange string   `json:"time_range"` // 5m, 15m, 1h, all
}

// MetricQueryResult holds the points of each requested series.
type MetricQueryResult struct {
	Query     MetricQuery            `json:"query"`
	Timestamp int64                  `json:"timestamp"`
	Series    map[string][]DataPoint `json:"series"`
}

// ExecuteQuery returns the requested history series.
func (m *Metrics) ExecuteQuery(query MetricQuery) (*MetricQueryResult, error) {
	if query.PresetID != "" {
		preset := GetPreset(query.PresetID)
		if preset == nil {
			return nil, fmt.Errorf("unknown preset %q", query.PresetID)
		}
		query.Series = preset.Series
		if query.TimeRange == "" {
			query.TimeRange = preset.TimeRange
		}
	}

	var since time.Time
	if query.TimeRange != "" && query.TimeRange != "all" {
		d, err := time.ParseDuration(query.TimeRange)
		if err != nil {
			return nil, fmt.Errorf("invalid time range %q: %w", query.TimeRange, err)
		}
		since = time.Now().Add(-d)
	}

	result := &MetricQueryResult{
		Query:     query,
		Timestamp: time.Now().Unix(),
		Series:    make(map[string][]DataPoint, len(query.Series)),
	}
	for _, name := range query.Series {
		h, ok := m.TimeSeries.Series(name)
		if !ok {
			return nil, fmt.Errorf("unknown series %q", name)
		}
		result.Series[name] = h.GetHistorySince(since)
	}
	return result, nil
}

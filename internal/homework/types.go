package homework

import (
	"encoding/json"
	"fmt"
	"math"
)

// Record is one entry of the API's "homeworks" list.
type Record struct {
	// HomeworkName is nil when the API omitted the field.
	HomeworkName *string `json:"homework_name"`
	Status       Status  `json:"status"`
}

// Name returns the homework name, or "None" when it was not reported.
func (r Record) Name() string {
	if r.HomeworkName == nil {
		return "None"
	}
	return *r.HomeworkName
}

// PollResult is the decoded body of a homework_statuses response.
// Homeworks are ordered most recent first.
type PollResult struct {
	Homeworks   []Record `json:"homeworks"`
	CurrentDate *int64   `json:"current_date"`
}

// UnmarshalJSON accepts current_date as any JSON number (or numeric
// string). Fractions are truncated; the value is otherwise taken as is.
func (p *PollResult) UnmarshalJSON(b []byte) error {
	var raw struct {
		Homeworks   []Record     `json:"homeworks"`
		CurrentDate *json.Number `json:"current_date"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.Homeworks = raw.Homeworks
	p.CurrentDate = nil
	if raw.CurrentDate == nil {
		return nil
	}
	ts, err := unixSeconds(*raw.CurrentDate)
	if err != nil {
		return err
	}
	p.CurrentDate = &ts
	return nil
}

func unixSeconds(n json.Number) (int64, error) {
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("current_date: %q is not a unix timestamp", n.String())
	}
	return int64(math.Trunc(f)), nil
}

// Latest returns the most recent record, if any.
func (p *PollResult) Latest() (Record, bool) {
	if p == nil || len(p.Homeworks) == 0 {
		return Record{}, false
	}
	return p.Homeworks[0], true
}

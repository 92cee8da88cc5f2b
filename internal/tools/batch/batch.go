package batch

import (
	"encoding/json"
	"fmt"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the outcome of the operation for a single ID.
type Result[T any] struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Value  *T     `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Summary aggregates the results of a batch.
type Summary[T any] struct {
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Results    []Result[T] `json:"results"`
}

// ParseIDs parses a parameter that can be either a single string or an
// array of strings. Duplicate IDs are dropped, keeping the first.
func ParseIDs(param any, paramName string) ([]string, error) {
	if param == nil {
		return nil, fmt.Errorf("%s is required", paramName)
	}

	var ids []string

	switch v := param.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		ids = []string{v}
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		seen := make(map[string]bool, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			if str == "" {
				return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
			}
			if seen[str] {
				continue
			}
			seen[str] = true
			ids = append(ids, str)
		}
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}

	return ids, nil
}

// Process runs fn for every ID in order and collects the outcomes. A
// failure for one ID does not stop the others.
func Process[T any](ids []string, fn func(id string) (T, error)) Summary[T] {
	s := Summary[T]{
		Total:   len(ids),
		Results: make([]Result[T], 0, len(ids)),
	}

	for _, id := range ids {
		r := Result[T]{ID: id}
		v, err := fn(id)
		if err != nil {
			r.Status = StatusError
			r.Error = err.Error()
			s.Failed++
		} else {
			r.Status = StatusSuccess
			r.Value = &v
			s.Successful++
		}
		s.Results = append(s.Results, r)
	}

	return s
}

// JSON renders the summary as indented JSON.
func (s Summary[T]) JSON() string {
	out, _ := json.MarshalIndent(s, "", "  ")
	return string(out)
}

package api

import (
	"fmt"
	"net/http"
	"time"
)

// parseRange reads the required start and end RFC3339 query parameters.
func parseRange(r *http.Request) (start, end time.Time, err error) {
	q := r.URL.Query()
	start, err = parseTime("start", q.Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = parseTime("end", q.Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end is before start", ErrBadRequest)
	}
	return start, end, nil
}

func parseTime(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: missing %s", ErrBadRequest, name)
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s; must be RFC3339", ErrBadRequest, name)
	}
	return t.UTC(), nil
}

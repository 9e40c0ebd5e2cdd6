// Package swpc fetches the daily active-region report published by the
// NOAA Space Weather Prediction Center.
package swpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/helio/internal/adapters/remote"
	"github.com/okian/helio/internal/domain/fault"
	"github.com/okian/helio/internal/domain/model"
)

// DefaultRegionsURL is the solar region report.
const DefaultRegionsURL = "https://services.swpc.noaa.gov/json/solar_regions.json"

// firstDate appears both as a plain date and as a zone-less timestamp.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	model.DateLayout,
}

// Client reads solar_regions.json.
type Client struct {
	http *http.Client
	url  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithURL overrides the report location.
func WithURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.url = u
		}
	}
}

// New returns an SWPC client.
func New(opts ...Option) *Client {
	c := &Client{
		http: remote.NewHTTPClient(remote.DefaultTimeout),
		url:  DefaultRegionsURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// regionRow mirrors one element of the report. Keys not listed are ignored.
type regionRow struct {
	Region              *int    `json:"region"`
	ObservedDate        string  `json:"observed_date"`
	FirstDate           string  `json:"first_date"`
	Latitude            *int    `json:"latitude"`
	Longitude           *int    `json:"longitude"`
	Location            string  `json:"location"`
	CarringtonLongitude *int    `json:"carrington_longitude"`
	Area                int     `json:"area"`
	SpotClass           *string `json:"spot_class"`
	Extent              int     `json:"extent"`
	NumberSpots         int     `json:"number_spots"`
	MagClass            *string `json:"mag_class"`
	MagString           *string `json:"mag_string"`
	Status              *string `json:"status"`
	CXrayEvents         int     `json:"c_xray_events"`
	MXrayEvents         int     `json:"m_xray_events"`
	XXrayEvents         int     `json:"x_xray_events"`
	ProtonEvents        *int    `json:"proton_events"`
	CFlareProbability   int     `json:"c_flare_probability"`
	MFlareProbability   int     `json:"m_flare_probability"`
	XFlareProbability   int     `json:"x_flare_probability"`
	ProtonProbability   *int    `json:"proton_probability"`
}

// FetchAll downloads the report. Rows without a region number, an observed
// date or a position cannot be keyed and are skipped.
func (c *Client) FetchAll(ctx context.Context) ([]model.Region, error) {
	const op = "swpc.regions"

	body, err := remote.Get(ctx, c.http, op, c.url, fault.ErrTransient)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var rows []regionRow
	if err := json.NewDecoder(body).Decode(&rows); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fault.Wrap(op, fault.ErrTransient, err)
	}

	out := make([]model.Region, 0, len(rows))
	for i, row := range rows {
		r, ok, err := row.toRegion()
		if err != nil {
			return nil, fault.Wrap(op, fault.ErrTransient, fmt.Errorf("row %d: %w", i, err))
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (row regionRow) toRegion() (model.Region, bool, error) {
	if row.Region == nil || row.ObservedDate == "" || row.Latitude == nil || row.Longitude == nil {
		return model.Region{}, false, nil
	}
	observed, err := parseTime(row.ObservedDate)
	if err != nil {
		return model.Region{}, false, err
	}
	first := observed
	if row.FirstDate != "" {
		if first, err = parseTime(row.FirstDate); err != nil {
			return model.Region{}, false, err
		}
	}
	return model.Region{
		Region:       *row.Region,
		ObservedDate: model.Date(observed),
		FirstDate:    first,
		Latitude:     *row.Latitude,
		Longitude:    *row.Longitude,
		Metadata: model.RegionMetadata{
			Location:            row.Location,
			CarringtonLongitude: row.CarringtonLongitude,
			Area:                row.Area,
			SpotClass:           row.SpotClass,
			Extent:              row.Extent,
			NumberSpots:         row.NumberSpots,
			MagClass:            row.MagClass,
			MagString:           row.MagString,
			Status:              row.Status,
			CXrayEvents:         row.CXrayEvents,
			MXrayEvents:         row.MXrayEvents,
			XXrayEvents:         row.XXrayEvents,
			ProtonEvents:        row.ProtonEvents,
			CFlareProbability:   row.CFlareProbability,
			MFlareProbability:   row.MFlareProbability,
			XFlareProbability:   row.XFlareProbability,
			ProtonProbability:   row.ProtonProbability,
		},
	}, true, nil
}

func parseTime(v string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", v)
}

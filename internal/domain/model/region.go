package model

import (
	"time"
)

// DateLayout is the calendar-date layout used for region observation dates.
const DateLayout = "2006-01-02"

// Region is one daily report for a numbered active region.
// Identity is (ObservedDate, Region).
type Region struct {
	ID           int64          `json:"id"`
	Region       int            `json:"region"`
	ObservedDate time.Time      `json:"observed_date"`
	FirstDate    time.Time      `json:"first_date"`
	Latitude     int            `json:"latitude"`
	Longitude    int            `json:"longitude"`
	Metadata     RegionMetadata `json:"metadata"`
}

// RegionMetadata carries the descriptive fields of a region report.
type RegionMetadata struct {
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

// Key identifies a region report.
type RegionKey struct {
	ObservedDate string
	Region       int
}

// Key returns the identity of r.
func (r Region) Key() RegionKey {
	return RegionKey{ObservedDate: r.ObservedDate.UTC().Format(DateLayout), Region: r.Region}
}

// Date truncates t to its UTC calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

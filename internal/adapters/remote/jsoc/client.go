// Package jsoc fetches HMI continuum images and the latest published
// image time from the Joint Science Operations Center.
package jsoc

import (
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"net/http"
	"strings"
	"time"

	"github.com/okian/helio/internal/adapters/remote"
	"github.com/okian/helio/internal/domain/contour"
	"github.com/okian/helio/internal/domain/fault"
	"github.com/okian/helio/internal/domain/slot"
)

const (
	// DefaultLatestURL lists the first and last published image times.
	DefaultLatestURL = "https://jsoc1.stanford.edu/data/hmi/images/image_times.json"
	// DefaultImageBaseURL is the root of the dated image tree.
	DefaultImageBaseURL = "http://jsoc.stanford.edu/data/hmi/images"

	timeLayout = "20060102_150405"
)

// Client talks to JSOC.
type Client struct {
	http         *http.Client
	latestURL    string
	imageBaseURL string
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

// WithLatestURL overrides the image_times.json location.
func WithLatestURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.latestURL = u
		}
	}
}

// WithImageBaseURL overrides the image tree root.
func WithImageBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.imageBaseURL = strings.TrimRight(u, "/")
		}
	}
}

// New returns a JSOC client.
func New(opts ...Option) *Client {
	c := &Client{
		http:         remote.NewHTTPClient(remote.DefaultTimeout),
		latestURL:    DefaultLatestURL,
		imageBaseURL: DefaultImageBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type imageTimes struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// FetchLatest returns the slot of the most recently published image.
// A missing index or an empty "last" is fault.ErrUnavailable.
func (c *Client) FetchLatest(ctx context.Context) (slot.Slot, error) {
	const op = "jsoc.latest"

	body, err := remote.Get(ctx, c.http, op, c.latestURL, fault.ErrUnavailable)
	if err != nil {
		return slot.Slot{}, err
	}
	defer body.Close()

	var times imageTimes
	if err := json.NewDecoder(body).Decode(&times); err != nil {
		return slot.Slot{}, fault.Wrap(op, fault.ErrTransient, err)
	}
	if times.Last == "" {
		return slot.Slot{}, fault.NewKind(op, fault.ErrUnavailable)
	}
	t, err := time.ParseInLocation(timeLayout, times.Last, time.UTC)
	if err != nil {
		return slot.Slot{}, fault.Wrap(op, fault.ErrTransient, err)
	}
	return slot.Floor(t), nil
}

// ImageURL returns the location of the image for s at scale.
func (c *Client) ImageURL(s slot.Slot, scale contour.Scale) string {
	t := s.Time().UTC()
	return fmt.Sprintf("%s/%s/%s_Ic_flat_%s.jpg",
		c.imageBaseURL, t.Format("2006/01/02"), t.Format(timeLayout), scale.Label())
}

// FetchImage downloads and decodes the image for s.
// A 404 is fault.ErrNotFound; other failures, including decode errors, are transient.
func (c *Client) FetchImage(ctx context.Context, s slot.Slot, scale contour.Scale) (*contour.RawImage, error) {
	const op = "jsoc.image"

	body, err := remote.Get(ctx, c.http, op, c.ImageURL(s, scale), fault.ErrNotFound)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	img, err := jpeg.Decode(body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fault.Wrap(op, fault.ErrTransient, err)
	}
	return contour.FromImage(img), nil
}

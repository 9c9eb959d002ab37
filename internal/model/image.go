package model

import (
	"errors"
	"math"
	"net/url"
	"strings"
)

// ImageSlots holds a play's image URLs in display order.  Empty strings are
// unused slots.
type ImageSlots [MaxImages]string

// ErrTooManyImages is returned by NewImageSlots when more than MaxImages
// URLs are supplied.
var ErrTooManyImages = errors.New("too many images")

// ErrInvalidImageURL is returned for URLs that are not absolute http(s).
var ErrInvalidImageURL = errors.New("invalid image url")

// NewImageSlots validates urls and packs the non-blank ones into slots.
func NewImageSlots(urls []string) (ImageSlots, error) {
	var s ImageSlots
	n := 0
	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		if n == MaxImages {
			return ImageSlots{}, ErrTooManyImages
		}
		parsed, err := url.Parse(u)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return ImageSlots{}, ErrInvalidImageURL
		}
		s[n] = u
		n++
	}
	return s, nil
}

// Primary returns the first non-empty slot.
func (s ImageSlots) Primary() string {
	for _, u := range s {
		if u != "" {
			return u
		}
	}
	return ""
}

// Compact returns the non-empty slots in order.  Never nil.
func (s ImageSlots) Compact() []string {
	out := make([]string, 0, MaxImages)
	for _, u := range s {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// ImageFraming positions the primary image inside its card.
type ImageFraming struct {
	Zoom float64 `json:"zoom"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

const (
	MinZoom   = 1.0
	MaxZoom   = 1.5
	MaxOffset = 50.0
)

// DefaultFraming is the centred, unzoomed framing.
func DefaultFraming() ImageFraming { return ImageFraming{Zoom: MinZoom} }

// Clamp forces zoom into [MinZoom, MaxZoom] and offsets into ±MaxOffset.
func (f ImageFraming) Clamp() ImageFraming {
	return ImageFraming{
		Zoom: clamp(f.Zoom, MinZoom, MaxZoom, MinZoom),
		X:    clamp(f.X, -MaxOffset, MaxOffset, 0),
		Y:    clamp(f.Y, -MaxOffset, MaxOffset, 0),
	}
}

func clamp(v, lo, hi, nan float64) float64 {
	if math.IsNaN(v) {
		return nan
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

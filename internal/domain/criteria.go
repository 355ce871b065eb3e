package domain

import (
	"math"
	"time"
)

const MinutesPerDay = 24 * 60

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IntRange is an inclusive range; a nil bound is unbounded on that side.
type IntRange struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

func (r IntRange) Contains(v int) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

func (r IntRange) IsSet() bool { return r.Min != nil || r.Max != nil }

// DateRange is inclusive, in epoch millis. It only constrains when both bounds are set.
type DateRange struct {
	Start *int64 `json:"start,omitempty"`
	End   *int64 `json:"end,omitempty"`
}

func (r DateRange) IsSet() bool { return r.Start != nil && r.End != nil }

// TimeOfDayRange holds minute-of-day bounds in [0,1440). Start > End wraps past midnight.
type TimeOfDayRange struct {
	StartMinute *int `json:"start_minute,omitempty"`
	EndMinute   *int `json:"end_minute,omitempty"`
}

func (r TimeOfDayRange) IsSet() bool { return r.StartMinute != nil && r.EndMinute != nil }

// Contains reports whether minute falls inside the window, wrapping for overnight windows.
func (r TimeOfDayRange) Contains(minute int) bool {
	if !r.IsSet() {
		return true
	}
	start, end := *r.StartMinute, *r.EndMinute
	if start <= end {
		return minute >= start && minute <= end
	}
	return minute >= start || minute <= end
}

// FilterCriteria is one user's discovery constraints. Every field is optional.
// Build it with NewFilterCriteria; the filter engine never mutates it.
type FilterCriteria struct {
	Genres         []Genre        `json:"genres,omitempty"`
	Center         *GeoPoint      `json:"center,omitempty"`
	RadiusKm       *float64       `json:"radius_km,omitempty"`
	Date           DateRange      `json:"date"`
	TimeOfDay      TimeOfDayRange `json:"time_of_day"`
	AvailableSeats IntRange       `json:"available_seats"`
	Capacity       IntRange       `json:"capacity"`
}

type CriteriaOption func(*FilterCriteria)

// WithGenres keeps the recognized tokens; unknown tokens are dropped.
func WithGenres(tokens ...string) CriteriaOption {
	return func(c *FilterCriteria) {
		for _, t := range tokens {
			if g, ok := ParseGenre(t); ok {
				c.Genres = append(c.Genres, g)
			}
		}
		c.Genres = dedupeGenres(c.Genres)
	}
}

func WithLocation(lat, lng, radiusKm float64) CriteriaOption {
	return func(c *FilterCriteria) {
		c.Center = &GeoPoint{Latitude: lat, Longitude: lng}
		c.RadiusKm = &radiusKm
	}
}

// WithRadius sets the radius alone; NewFilterCriteria rejects it unless a center is also set.
func WithRadius(radiusKm float64) CriteriaOption {
	return func(c *FilterCriteria) { c.RadiusKm = &radiusKm }
}

func WithCenter(lat, lng float64) CriteriaOption {
	return func(c *FilterCriteria) { c.Center = &GeoPoint{Latitude: lat, Longitude: lng} }
}

func WithDateRange(start, end time.Time) CriteriaOption {
	return func(c *FilterCriteria) {
		s, e := start.UnixMilli(), end.UnixMilli()
		c.Date = DateRange{Start: &s, End: &e}
	}
}

func WithTimeOfDay(startMinute, endMinute int) CriteriaOption {
	return func(c *FilterCriteria) {
		c.TimeOfDay = TimeOfDayRange{StartMinute: &startMinute, EndMinute: &endMinute}
	}
}

func WithAvailableSeats(min, max *int) CriteriaOption {
	return func(c *FilterCriteria) { c.AvailableSeats = IntRange{Min: min, Max: max} }
}

func WithCapacity(min, max *int) CriteriaOption {
	return func(c *FilterCriteria) { c.Capacity = IntRange{Min: min, Max: max} }
}

func NewFilterCriteria(opts ...CriteriaOption) (*FilterCriteria, error) {
	c := &FilterCriteria{}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate enforces the construction contract. Unknown genres are not an error.
func (c *FilterCriteria) Validate() error {
	if c == nil {
		return nil
	}
	if c.RadiusKm != nil {
		if c.Center == nil {
			return ErrRadiusWithoutCenter
		}
		if math.IsNaN(*c.RadiusKm) || math.IsInf(*c.RadiusKm, 0) || *c.RadiusKm < 0 {
			return ValidationMeta(CodeInvalidCriteria, "invalid radius", map[string]string{"radius_km": "must be a finite number >= 0"})
		}
	}
	if c.Center != nil && !validLatLng(c.Center.Latitude, c.Center.Longitude) {
		return ValidationMeta(CodeInvalidCriteria, "invalid center", map[string]string{"center": "latitude in [-90,90], longitude in [-180,180]"})
	}
	for field, m := range map[string]*int{"start_minute": c.TimeOfDay.StartMinute, "end_minute": c.TimeOfDay.EndMinute} {
		if m != nil && (*m < 0 || *m >= MinutesPerDay) {
			return ValidationMeta(CodeInvalidCriteria, "invalid time of day", map[string]string{field: "must be in [0,1440)"})
		}
	}
	return nil
}

// Normalized returns a copy safe to evaluate: unknown genres dropped, duplicate
// genres collapsed, and a location without center or with a bad radius removed.
// It is used for snapshots decoded from storage, where rejecting would lose the
// user's other constraints.
func (c *FilterCriteria) Normalized() *FilterCriteria {
	if c == nil {
		return nil
	}
	out := *c
	out.Genres = nil
	for _, g := range c.Genres {
		if known, ok := ParseGenre(string(g)); ok {
			out.Genres = append(out.Genres, known)
		}
	}
	out.Genres = dedupeGenres(out.Genres)

	if out.RadiusKm != nil {
		r := *out.RadiusKm
		if out.Center == nil || math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
			out.Center, out.RadiusKm = nil, nil
		}
	}
	if out.TimeOfDay.IsSet() {
		s, e := *out.TimeOfDay.StartMinute, *out.TimeOfDay.EndMinute
		if s < 0 || s >= MinutesPerDay || e < 0 || e >= MinutesPerDay {
			out.TimeOfDay = TimeOfDayRange{}
		}
	}
	return &out
}

func dedupeGenres(in []Genre) []Genre {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[Genre]struct{}, len(in))
	out := in[:0:0]
	for _, g := range in {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

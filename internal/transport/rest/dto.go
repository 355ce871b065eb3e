package rest

import (
	"math"
	"time"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type geoPointDTO struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

type dateRangeDTO struct {
	Start *int64 `json:"start" validate:"required"`
	End   *int64 `json:"end" validate:"required"`
}

type timeOfDayDTO struct {
	StartMinute *int `json:"start_minute" validate:"required,gte=0,lt=1440"`
	EndMinute   *int `json:"end_minute" validate:"required,gte=0,lt=1440"`
}

type intRangeDTO struct {
	Min *int `json:"min" validate:"omitempty,gte=0"`
	Max *int `json:"max" validate:"omitempty,gte=0"`
}

// criteriaRequest is the wire shape of search and saved-filter bodies.
type criteriaRequest struct {
	Genres         []string      `json:"genres"`
	Center         *geoPointDTO  `json:"center"`
	RadiusKm       *float64      `json:"radius_km"`
	Date           *dateRangeDTO `json:"date"`
	TimeOfDay      *timeOfDayDTO `json:"time_of_day"`
	AvailableSeats *intRangeDTO  `json:"available_seats"`
	Capacity       *intRangeDTO  `json:"capacity"`
}

// wellFormed reports whether an optional criterion block passes its tags.
// A block that does not is left out, which leaves that criterion unconstrained.
func wellFormed(v any) bool {
	return validate.Struct(v) == nil
}

// toCriteria builds domain criteria. Malformed or one-sided optional blocks
// are dropped; the only rejected shape is a radius with no center at all.
func (req criteriaRequest) toCriteria() (*domain.FilterCriteria, error) {
	var opts []domain.CriteriaOption
	if len(req.Genres) > 0 {
		opts = append(opts, domain.WithGenres(req.Genres...))
	}

	switch {
	case req.Center == nil && req.RadiusKm != nil:
		opts = append(opts, domain.WithRadius(*req.RadiusKm))
	case req.Center != nil && wellFormed(req.Center):
		lat, lng := *req.Center.Latitude, *req.Center.Longitude
		if req.RadiusKm == nil {
			opts = append(opts, domain.WithCenter(lat, lng))
		} else if r := *req.RadiusKm; r >= 0 && !math.IsInf(r, 0) && !math.IsNaN(r) {
			opts = append(opts, domain.WithLocation(lat, lng, r))
		}
	}

	// an inverted range is kept; it simply matches nothing
	if d := req.Date; d != nil && wellFormed(d) {
		opts = append(opts, domain.WithDateRange(time.UnixMilli(*d.Start), time.UnixMilli(*d.End)))
	}
	if t := req.TimeOfDay; t != nil && wellFormed(t) {
		opts = append(opts, domain.WithTimeOfDay(*t.StartMinute, *t.EndMinute))
	}
	if r := req.AvailableSeats; r != nil && wellFormed(r) {
		opts = append(opts, domain.WithAvailableSeats(r.Min, r.Max))
	}
	if r := req.Capacity; r != nil && wellFormed(r) {
		opts = append(opts, domain.WithCapacity(r.Min, r.Max))
	}

	return domain.NewFilterCriteria(opts...)
}

// criteriaResponse mirrors criteriaRequest for GET /me/filter.
func criteriaResponse(c *domain.FilterCriteria) criteriaRequest {
	if c == nil {
		return criteriaRequest{}
	}
	out := criteriaRequest{RadiusKm: c.RadiusKm}
	for _, g := range c.Genres {
		out.Genres = append(out.Genres, string(g))
	}
	if c.Center != nil {
		lat, lng := c.Center.Latitude, c.Center.Longitude
		out.Center = &geoPointDTO{Latitude: &lat, Longitude: &lng}
	}
	if c.Date.IsSet() {
		out.Date = &dateRangeDTO{Start: c.Date.Start, End: c.Date.End}
	}
	if c.TimeOfDay.IsSet() {
		out.TimeOfDay = &timeOfDayDTO{StartMinute: c.TimeOfDay.StartMinute, EndMinute: c.TimeOfDay.EndMinute}
	}
	if c.AvailableSeats.IsSet() {
		out.AvailableSeats = &intRangeDTO{Min: c.AvailableSeats.Min, Max: c.AvailableSeats.Max}
	}
	if c.Capacity.IsSet() {
		out.Capacity = &intRangeDTO{Min: c.Capacity.Min, Max: c.Capacity.Max}
	}
	return out
}

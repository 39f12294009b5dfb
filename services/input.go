package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/straysafe/straysafebackend/geo"
	"github.com/straysafe/straysafebackend/validation"
)

// Pin payloads come from browsers, the mobile app and camera scripts, which
// disagree on whether numbers and flags are quoted. These helpers accept both.

func toFloat(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "true", "on", "yes":
			return true
		}
		return false
	default:
		f, ok := toFloat(v)
		return ok && f != 0
	}
}

// parseCoordinates reads a [lng, lat] pair. A nil slice has already failed
// the required rule; an empty one has not.
func parseCoordinates(raw []interface{}, verr *validation.RequestValidationError) (geo.Point, bool) {
	if len(raw) == 0 {
		if !fieldFailed(verr, "coordinates") {
			verr.Add("coordinates", "The coordinates field is required.")
		}
		return geo.Point{}, false
	}
	if len(raw) != 2 {
		verr.Add("coordinates", "The coordinates field must contain 2 items.")
		return geo.Point{}, false
	}
	var p geo.Point
	ok := true
	for i, v := range raw {
		f, valid := toFloat(v)
		if !valid {
			verr.Add(fmt.Sprintf("coordinates.%d", i), fmt.Sprintf("The coordinates.%d field must be a number.", i))
			ok = false
			continue
		}
		p[i] = f
	}
	if ok && (p.Lat() < -90 || p.Lat() > 90 || p.Lng() < -180 || p.Lng() > 180) {
		verr.Add("coordinates", "The coordinates must be a valid [longitude, latitude] pair.")
		ok = false
	}
	return p, ok
}

// optionalFloat parses a nullable numeric field. Absent values return nil.
func optionalFloat(field string, v interface{}, verr *validation.RequestValidationError) *float64 {
	if v == nil {
		return nil
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		verr.Add(field, fmt.Sprintf("The %s field must be a number.", strings.ReplaceAll(field, "_", " ")))
		return nil
	}
	return &f
}

func stringOr(s *string, def string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return def
	}
	return strings.TrimSpace(*s)
}

func fieldFailed(verr *validation.RequestValidationError, field string) bool {
	for _, f := range verr.Fields() {
		if f.Field == field {
			return true
		}
	}
	return false
}

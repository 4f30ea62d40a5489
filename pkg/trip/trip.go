package trip

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/xhad/yatra/internal/models"
	"github.com/xhad/yatra/internal/types"
)

const (
	BudgetMin     = 1000
	BudgetMax     = 10000
	BudgetStep    = 500
	BudgetDefault = 5000

	// MaxDays is the longest trip the planner accepts.
	MaxDays = 10

	// DefaultLength is the span of the date range offered before the user picks one.
	DefaultLength = 7

	DateLayout = "2006-01-02"
)

// ParseDate reads a form date in DateLayout.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, types.ValidationError{Field: "dates", Message: "dates must be formatted as YYYY-MM-DD"}
	}
	return t, nil
}

// DayCount is the number of whole days from start to end.
func DayCount(start, end time.Time) int {
	return int(dateOnly(end).Sub(dateOnly(start)).Hours() / 24)
}

// ValidateRange checks that start..end lies between today and the end of the
// current year and spans at most MaxDays.
func ValidateRange(start, end, today time.Time) error {
	start, end, today = dateOnly(start), dateOnly(end), dateOnly(today)
	yearEnd := time.Date(today.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)

	switch {
	case start.Before(today):
		return types.ValidationError{Field: "dates", Message: "trip cannot start in the past"}
	case end.After(yearEnd):
		return types.ValidationError{Field: "dates", Message: "trip must end by December 31"}
	case end.Before(start):
		return types.ValidationError{Field: "dates", Message: "end date is before start date"}
	case DayCount(start, end) > MaxDays:
		return types.ValidationError{Field: "dates", Message: "Please enter a date range with 10 or fewer days."}
	}
	return nil
}

// DefaultRange is the date range shown on a fresh form.
func DefaultRange(today time.Time) (time.Time, time.Time) {
	today = dateOnly(today)
	end := today.AddDate(0, 0, DefaultLength)
	if yearEnd := time.Date(today.Year(), time.December, 31, 0, 0, 0, 0, time.UTC); end.After(yearEnd) {
		end = yearEnd
	}
	return today, end
}

// NewQuery validates form input and builds the planner query. Every failure
// matches types.ErrInvalidInput.
func NewQuery(destination string, start, end time.Time, budget int, today time.Time) (models.Query, error) {
	destination = strings.TrimSpace(destination)

	var errs []error
	if err := ValidateRange(start, end, today); err != nil {
		errs = append(errs, err)
	}
	days := DayCount(start, end)
	if destination == "" || days < 1 {
		errs = append(errs, types.ValidationError{Field: "destination", Message: "Please fill out both fields."})
	}
	if budget < BudgetMin || budget > BudgetMax || budget%BudgetStep != 0 {
		errs = append(errs, types.ValidationError{Field: "budget", Message: "budget must be 1000-10000 INR in steps of 500"})
	}
	if len(errs) > 0 {
		return models.Query{}, errors.Join(errs...)
	}

	return models.Query{
		Destination: destination,
		DayCount:    days,
		Budget:      budget,
	}, nil
}

// MapsURL links the destination on Google Maps.
func MapsURL(destination string) string {
	return "https://www.google.com/maps/place/" + url.PathEscape(strings.TrimSpace(destination))
}

// DownloadName is the file name offered for a saved itinerary.
func DownloadName(destination string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', '\n', '\r':
			return '_'
		}
		return r
	}, strings.TrimSpace(destination))
	if name == "" {
		name = "itinerary"
	}
	return name + ".txt"
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

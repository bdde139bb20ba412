package reconcile

import (
	"cmp"
	"fmt"
	"slices"

	"mnyxls/internal/config"
	"mnyxls/internal/core"
)

// Era is a named, inclusive date range. A zero bound is open.
type Era struct {
	Name string
	From core.Date
	To   core.Date
}

func (e Era) Contains(d core.Date) bool {
	return d.Between(e.From, e.To)
}

// ResolveEras parses the eras directive. An era without date_from starts the
// day after the previous era ends, and date_to "..." leaves it open. Eras
// are returned sorted by range and must not overlap.
func ResolveEras(cfg *config.Config) ([]Era, error) {
	var (
		eras   []Era
		prevTo core.Date
	)
	for _, ec := range cfg.Eras {
		directive := "eras." + ec.Name
		era := Era{Name: ec.Name}

		var err error
		switch {
		case ec.DateFrom != "":
			if era.From, err = core.ParsePartialDate(ec.DateFrom, false); err != nil {
				return nil, &core.ConfigurationError{File: cfg.File, Directive: directive + ".date_from", Msg: err.Error()}
			}
		case !prevTo.IsZero():
			era.From = core.DateOf(prevTo.AddDate(0, 0, 1))
		}
		if ec.DateTo != "" && ec.DateTo != config.OpenEnded {
			if era.To, err = core.ParsePartialDate(ec.DateTo, true); err != nil {
				return nil, &core.ConfigurationError{File: cfg.File, Directive: directive + ".date_to", Msg: err.Error()}
			}
		}

		if era.From.IsZero() && era.To.IsZero() {
			return nil, &core.ConfigurationError{File: cfg.File, Directive: directive, Msg: "'date_from' or 'date_to' is required"}
		}
		if !era.From.IsZero() && !era.To.IsZero() && era.To.Before(era.From) {
			era.From, era.To = era.To, era.From
		}
		if !era.To.IsZero() {
			prevTo = era.To
		}
		eras = append(eras, era)
	}

	slices.SortStableFunc(eras, func(a, b Era) int {
		return cmp.Or(lowerBound(a.From).Compare(lowerBound(b.From).Time), upperBound(a.To).Compare(upperBound(b.To).Time))
	})
	for i := 1; i < len(eras); i++ {
		a, b := eras[i-1], eras[i]
		if lowerBound(b.From).Before(upperBound(a.To)) {
			return nil, &core.ConfigurationError{
				File:      cfg.File,
				Directive: "eras",
				Msg:       fmt.Sprintf("eras '%s' and '%s' have overlapping date ranges", a.Name, b.Name),
			}
		}
	}
	return eras, nil
}

var (
	minDate = core.NewDate(1, 1, 1)
	maxDate = core.NewDate(9999, 12, 31)
)

func lowerBound(d core.Date) core.Date {
	if d.IsZero() {
		return minDate
	}
	return d
}

func upperBound(d core.Date) core.Date {
	if d.IsZero() {
		return maxDate
	}
	return d
}

// eraOf returns the name of the first era containing d.
func eraOf(eras []Era, d core.Date) string {
	for _, e := range eras {
		if e.Contains(d) {
			return e.Name
		}
	}
	return ""
}

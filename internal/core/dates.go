package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	ISODateLayout    = "2006-01-02"
	ReportDateLayout = "1/2/2006"
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseISODate parses YYYY-MM-DD as used by the transactions report.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse(ISODateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// ParseReportDate parses MM/DD/YYYY as used by report headers and columns.
func ParseReportDate(s string) (Date, error) {
	t, err := time.Parse(ReportDateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(ISODateLayout)
}

// Before, After and Equal shadow time.Time so Dates compare without unwrapping.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

// Between reports from <= d <= to; a zero bound is open.
func (d Date) Between(from, to Date) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}

func (d Date) FirstOfMonth() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

func (d Date) LastOfMonth() Date {
	return NewDate(d.Year(), int(d.Month())+1, 0)
}

// AddMonths moves by whole months from the first of the month.
func (d Date) AddMonths(n int) Date {
	return NewDate(d.Year(), int(d.Month())+n, 1)
}

// YYYYMM is the month bucket label, e.g. "2023-04".
func (d Date) YYYYMM() string {
	return d.Format("2006-01")
}

// Decade returns floor(year/10)*10, also for years before 0.
func (d Date) Decade() int {
	y := d.Year()
	if y < 0 && y%10 != 0 {
		return (y/10 - 1) * 10
	}
	return y / 10 * 10
}

// MinDate returns the earlier non-zero date.
func MinDate(a, b Date) Date {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	}
	return a
}

// MaxDate returns the later non-zero date.
func MaxDate(a, b Date) Date {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.After(a):
		return b
	}
	return a
}

// ParsePartialDate parses YYYY, YYYY-MM or YYYY-MM-DD. A partial date expands
// to the first day of its period, or the last day when upper is set.
func ParsePartialDate(s string, upper bool) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{ISODateLayout, "2006-01", "2006"} {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := Date{Time: t}
		if !upper {
			return d, nil
		}
		switch layout {
		case "2006-01":
			return d.LastOfMonth(), nil
		case "2006":
			return NewDate(d.Year(), 12, 31), nil
		}
		return d, nil
	}
	return Date{}, fmt.Errorf("%w: %q (expected YYYY, YYYY-MM or YYYY-MM-DD)", ErrInvalidDate, s)
}

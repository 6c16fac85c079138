// Package logicalday assigns instants to activity-accounting days.
//
// A logical day starts at a configurable boundary hour instead of midnight,
// so a session running from 23:00 to 01:00 is booked on a single day.
package logicalday

import (
	"database/sql/driver"
	"time"

	"golang.org/x/xerrors"
)

// DefaultBoundaryHour is the hour at which a new logical day starts.
const DefaultBoundaryHour = 7

// Layout is the storage and wire format of a Date.
const Layout = "2006-01-02"

// Date is a calendar date without time of day or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Resolve returns the logical date of t. The hour of day is read in t's own
// location; callers convert to the user's local zone first.
func Resolve(t time.Time, boundaryHour int) Date {
	d := DateOf(t)
	if t.Hour() < boundaryHour {
		// date arithmetic: the same wall clock a day earlier may not exist
		return d.AddDays(-1)
	}
	return d
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Parse reads a YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, xerrors.Errorf("parse logical date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MustParse is Parse for literals in tests and seed data.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) Before(o Date) bool {
	return d.In(time.UTC).Before(o.In(time.UTC))
}

func (d Date) String() string {
	return d.In(time.UTC).Format(Layout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = p
	return nil
}

// Value stores the date as YYYY-MM-DD text.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan accepts the text form, and time values for drivers that convert
// date-looking columns on their own.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	case time.Time:
		*d = DateOf(v)
		return nil
	default:
		return xerrors.Errorf("scan logical date: unsupported type %T", src)
	}
}

package query

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date/Time Functions

// timeArg reads argument i as a time, naming it in the error
func timeArg(fn string, args []interface{}, i int, label string) (time.Time, error) {
	t, err := valueToTime(args[i])
	if err != nil {
		if label == "" {
			return time.Time{}, fmt.Errorf("%s: %w", fn, err)
		}
		return time.Time{}, fmt.Errorf("%s: %s: %w", fn, label, err)
	}
	return t, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CurrentDateFunc returns the current date
type CurrentDateFunc struct{}

func (f *CurrentDateFunc) Name() string  { return "CURRENT_DATE" }
func (f *CurrentDateFunc) MinArity() int { return 0 }
func (f *CurrentDateFunc) MaxArity() int { return 0 }
func (f *CurrentDateFunc) Evaluate(args []interface{}) (interface{}, error) {
	return startOfDay(time.Now().UTC()), nil
}

// CurrentTimeFunc returns the current time of day
type CurrentTimeFunc struct{}

func (f *CurrentTimeFunc) Name() string  { return "CURRENT_TIME" }
func (f *CurrentTimeFunc) MinArity() int { return 0 }
func (f *CurrentTimeFunc) MaxArity() int { return 0 }
func (f *CurrentTimeFunc) Evaluate(args []interface{}) (interface{}, error) {
	return time.Now().UTC().Format("15:04:05"), nil
}

// DateFunc returns the date part of a value, or builds a date from
// year, month and day
type DateFunc struct{}

func (f *DateFunc) Name() string  { return "DATE" }
func (f *DateFunc) MinArity() int { return 1 }
func (f *DateFunc) MaxArity() int { return 3 }
func (f *DateFunc) Evaluate(args []interface{}) (interface{}, error) {
	if len(args) == 1 {
		t, err := timeArg("DATE", args, 0, "")
		if err != nil {
			return nil, err
		}
		return startOfDay(t), nil
	}

	var parts [3]int
	labels := [3]string{"year", "month", "day"}
	for i := range parts {
		if i >= len(args) {
			parts[i] = 1
			continue
		}
		n, err := valueToInt(args[i])
		if err != nil {
			return nil, fmt.Errorf("DATE: %s: %w", labels[i], err)
		}
		parts[i] = n
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], 0, 0, 0, 0, time.UTC), nil
}

// TimeFunc returns the time of day of a value as HH:MM:SS
type TimeFunc struct{}

func (f *TimeFunc) Name() string  { return "TIME" }
func (f *TimeFunc) MinArity() int { return 1 }
func (f *TimeFunc) MaxArity() int { return 1 }
func (f *TimeFunc) Evaluate(args []interface{}) (interface{}, error) {
	t, err := timeArg("TIME", args, 0, "")
	if err != nil {
		return nil, err
	}
	return t.Format("15:04:05"), nil
}

// DateTimeFunc converts a value to a date and time
type DateTimeFunc struct{}

func (f *DateTimeFunc) Name() string  { return "DATETIME" }
func (f *DateTimeFunc) MinArity() int { return 1 }
func (f *DateTimeFunc) MaxArity() int { return 1 }
func (f *DateTimeFunc) Evaluate(args []interface{}) (interface{}, error) {
	return timeArg("DATETIME", args, 0, "")
}

// ExtractFunc extracts a field from a date: EXTRACT(part FROM value)
type ExtractFunc struct{}

func (f *ExtractFunc) Name() string  { return "EXTRACT" }
func (f *ExtractFunc) MinArity() int { return 2 }
func (f *ExtractFunc) MaxArity() int { return 2 }
func (f *ExtractFunc) Evaluate(args []interface{}) (interface{}, error) {
	part, err := stringArg("EXTRACT", args, 0, "part")
	if err != nil {
		return nil, err
	}
	t, err := timeArg("EXTRACT", args, 1, "")
	if err != nil {
		return nil, err
	}
	v, ok := dateField(t, part)
	if !ok {
		return nil, fmt.Errorf("EXTRACT: invalid part: %s", part)
	}
	return v, nil
}

// dateField returns one named field of t
func dateField(t time.Time, part string) (float64, bool) {
	switch strings.ToUpper(part) {
	case "MILLENNIUM":
		return math.Ceil(float64(t.Year()) / 1000), true
	case "CENTURY":
		return math.Ceil(float64(t.Year()) / 100), true
	case "DECADE":
		return math.Floor(float64(t.Year()) / 10), true
	case "YEAR":
		return float64(t.Year()), true
	case "ISOYEAR":
		y, _ := t.ISOWeek()
		return float64(y), true
	case "QUARTER":
		return float64((int(t.Month())-1)/3 + 1), true
	case "MONTH":
		return float64(t.Month()), true
	case "WEEK":
		_, w := t.ISOWeek()
		return float64(w), true
	case "DAY":
		return float64(t.Day()), true
	case "DOY":
		return float64(t.YearDay()), true
	case "DOW":
		return float64(t.Weekday()), true
	case "ISODOW":
		d := int(t.Weekday())
		if d == 0 {
			d = 7
		}
		return float64(d), true
	case "HOUR":
		return float64(t.Hour()), true
	case "MINUTE":
		return float64(t.Minute()), true
	case "SECOND":
		return float64(t.Second()) + float64(t.Nanosecond())/1e9, true
	case "MILLISECOND", "MILLISECONDS":
		return float64(t.Second())*1e3 + float64(t.Nanosecond())/1e6, true
	case "MICROSECOND", "MICROSECONDS":
		return float64(t.Second())*1e6 + float64(t.Nanosecond())/1e3, true
	case "EPOCH":
		return float64(t.UnixNano()) / 1e9, true
	case "JULIAN":
		return math.Floor(float64(t.Unix())/86400 + 2440587.5 + 0.5), true
	case "TIMEZONE":
		_, offset := t.Zone()
		return float64(offset), true
	}
	return 0, false
}

// DateTruncFunc truncates a date to the specified unit
type DateTruncFunc struct{}

func (f *DateTruncFunc) Name() string  { return "DATE_TRUNC" }
func (f *DateTruncFunc) MinArity() int { return 2 }
func (f *DateTruncFunc) MaxArity() int { return 2 }
func (f *DateTruncFunc) Evaluate(args []interface{}) (interface{}, error) {
	unit, err := stringArg("DATE_TRUNC", args, 0, "unit")
	if err != nil {
		return nil, err
	}
	d, err := timeArg("DATE_TRUNC", args, 1, "")
	if err != nil {
		return nil, err
	}

	loc := d.Location()
	switch strings.ToLower(unit) {
	case "year":
		return time.Date(d.Year(), 1, 1, 0, 0, 0, 0, loc), nil
	case "quarter":
		m := time.Month((int(d.Month())-1)/3*3 + 1)
		return time.Date(d.Year(), m, 1, 0, 0, 0, 0, loc), nil
	case "month":
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, loc), nil
	case "week":
		offset := (int(d.Weekday()) + 6) % 7
		return startOfDay(d).AddDate(0, 0, -offset), nil
	case "day":
		return startOfDay(d), nil
	case "hour":
		return d.Truncate(time.Hour), nil
	case "minute":
		return d.Truncate(time.Minute), nil
	case "second":
		return d.Truncate(time.Second), nil
	}
	return nil, fmt.Errorf("DATE_TRUNC: invalid unit: %s", unit)
}

// maxCalendarAmount bounds year/month/day arithmetic
const maxCalendarAmount = float64(1 << 30)

// addInterval shifts t by amount units
func addInterval(fn string, t time.Time, amount float64, unit string) (time.Time, error) {
	unit = strings.TrimSuffix(strings.ToLower(unit), "s")
	switch unit {
	case "year", "quarter", "month", "week", "day":
		if amount > maxCalendarAmount || amount < -maxCalendarAmount {
			return time.Time{}, fmt.Errorf("%s: amount out of valid range", fn)
		}
		n := int(amount)
		switch unit {
		case "year":
			return t.AddDate(n, 0, 0), nil
		case "quarter":
			return t.AddDate(0, 3*n, 0), nil
		case "month":
			return t.AddDate(0, n, 0), nil
		case "week":
			return t.AddDate(0, 0, 7*n), nil
		}
		return t.AddDate(0, 0, n), nil
	}

	var step time.Duration
	switch unit {
	case "hour":
		step = time.Hour
	case "minute":
		step = time.Minute
	case "second":
		step = time.Second
	case "millisecond":
		step = time.Millisecond
	default:
		return time.Time{}, fmt.Errorf("%s: invalid unit: %s", fn, unit)
	}
	limit := float64(math.MaxInt64) / float64(step)
	if amount > limit || amount < -limit {
		return time.Time{}, fmt.Errorf("%s: amount out of valid range", fn)
	}
	return t.Add(time.Duration(amount * float64(step))), nil
}

// DateAddFunc adds an interval to a date: DATE_ADD(date, amount, unit)
type DateAddFunc struct{}

func (f *DateAddFunc) Name() string  { return "DATE_ADD" }
func (f *DateAddFunc) MinArity() int { return 2 }
func (f *DateAddFunc) MaxArity() int { return 3 }
func (f *DateAddFunc) Evaluate(args []interface{}) (interface{}, error) {
	return dateShift("DATE_ADD", args, 1)
}

// DateSubFunc subtracts an interval from a date
type DateSubFunc struct{}

func (f *DateSubFunc) Name() string  { return "DATE_SUB" }
func (f *DateSubFunc) MinArity() int { return 2 }
func (f *DateSubFunc) MaxArity() int { return 3 }
func (f *DateSubFunc) Evaluate(args []interface{}) (interface{}, error) {
	return dateShift("DATE_SUB", args, -1)
}

func dateShift(fn string, args []interface{}, sign float64) (interface{}, error) {
	d, err := timeArg(fn, args, 0, "")
	if err != nil {
		return nil, err
	}
	amount, err := numberArg(fn, args, 1, "amount")
	if err != nil {
		return nil, err
	}
	unit := "day"
	if len(args) == 3 {
		if unit, err = stringArg(fn, args, 2, "unit"); err != nil {
			return nil, err
		}
	}
	return addInterval(fn, d, sign*amount, unit)
}

// DateDiffFunc returns a minus b in whole units, days by default
type DateDiffFunc struct{}

func (f *DateDiffFunc) Name() string  { return "DATE_DIFF" }
func (f *DateDiffFunc) MinArity() int { return 2 }
func (f *DateDiffFunc) MaxArity() int { return 3 }
func (f *DateDiffFunc) Evaluate(args []interface{}) (interface{}, error) {
	a, err := timeArg("DATE_DIFF", args, 0, "first date")
	if err != nil {
		return nil, err
	}
	b, err := timeArg("DATE_DIFF", args, 1, "second date")
	if err != nil {
		return nil, err
	}
	unit := "day"
	if len(args) == 3 {
		if unit, err = stringArg("DATE_DIFF", args, 2, "unit"); err != nil {
			return nil, err
		}
	}

	diff := a.Sub(b)
	switch strings.TrimSuffix(strings.ToLower(unit), "s") {
	case "year":
		y, _, _ := calendarDiff(b, a)
		return float64(y), nil
	case "month":
		y, m, _ := calendarDiff(b, a)
		return float64(y*12 + m), nil
	case "week":
		return math.Trunc(diff.Hours() / (24 * 7)), nil
	case "day":
		// partial days truncate towards zero
		return math.Trunc(diff.Hours() / 24), nil
	case "hour":
		return math.Trunc(diff.Hours()), nil
	case "minute":
		return math.Trunc(diff.Minutes()), nil
	case "second":
		return math.Trunc(diff.Seconds()), nil
	case "millisecond":
		return float64(diff.Milliseconds()), nil
	}
	return nil, fmt.Errorf("DATE_DIFF: invalid unit: %s", unit)
}

// calendarDiff returns the signed years, months and days from a to b
func calendarDiff(a, b time.Time) (years, months, days int) {
	sign := 1
	if b.Before(a) {
		a, b = b, a
		sign = -1
	}
	years = b.Year() - a.Year()
	months = int(b.Month()) - int(a.Month())
	days = b.Day() - a.Day()
	if b.Hour()*3600+b.Minute()*60+b.Second() < a.Hour()*3600+a.Minute()*60+a.Second() {
		days--
	}
	if days < 0 {
		// borrow the length of the month before b
		days += time.Date(b.Year(), b.Month(), 0, 0, 0, 0, 0, time.UTC).Day()
		months--
	}
	if months < 0 {
		months += 12
		years--
	}
	return sign * years, sign * months, sign * days
}

// AgeFunc returns the calendar interval from b (default now) back to a, as
// an ISO 8601 duration
type AgeFunc struct{}

func (f *AgeFunc) Name() string  { return "AGE" }
func (f *AgeFunc) MinArity() int { return 1 }
func (f *AgeFunc) MaxArity() int { return 2 }
func (f *AgeFunc) Evaluate(args []interface{}) (interface{}, error) {
	a, err := timeArg("AGE", args, 0, "")
	if err != nil {
		return nil, err
	}
	b := time.Now().UTC()
	if len(args) == 2 {
		if b, err = timeArg("AGE", args, 1, "reference"); err != nil {
			return nil, err
		}
	}

	y, m, d := calendarDiff(a, b)
	neg := y < 0 || m < 0 || d < 0
	if neg {
		y, m, d = -y, -m, -d
	}
	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	sb.WriteByte('P')
	if y != 0 {
		sb.WriteString(strconv.Itoa(y) + "Y")
	}
	if m != 0 {
		sb.WriteString(strconv.Itoa(m) + "M")
	}
	if d != 0 || (y == 0 && m == 0) {
		sb.WriteString(strconv.Itoa(d) + "D")
	}
	return sb.String(), nil
}

var isoDuration = regexp.MustCompile(`^(-)?P(?:(\d+(?:\.\d+)?)Y)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)W)?(?:(\d+(?:\.\d+)?)D)?(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// durationUnits are the nominal lengths, in milliseconds, of the ISO 8601
// duration designators in match order
var durationUnits = []float64{
	365.25 * 86400e3, 30 * 86400e3, 7 * 86400e3, 86400e3, 3600e3, 60e3, 1e3,
}

// DurationFunc converts an ISO 8601 duration (P1DT2H) or a Go duration
// (1h30m) to milliseconds
type DurationFunc struct{}

func (f *DurationFunc) Name() string  { return "DURATION" }
func (f *DurationFunc) MinArity() int { return 1 }
func (f *DurationFunc) MaxArity() int { return 1 }
func (f *DurationFunc) Evaluate(args []interface{}) (interface{}, error) {
	s, err := stringArg("DURATION", args, 0, "")
	if err != nil {
		return nil, err
	}
	s = strings.ToUpper(strings.TrimSpace(s))

	if m := isoDuration.FindStringSubmatch(s); m != nil && s != "P" && s != "-P" {
		total := 0.0
		for i, unit := range durationUnits {
			if m[i+2] == "" {
				continue
			}
			n, err := strconv.ParseFloat(m[i+2], 64)
			if err != nil {
				return nil, fmt.Errorf("DURATION: %w", err)
			}
			total += n * unit
		}
		if m[1] != "" {
			total = -total
		}
		return total, nil
	}

	d, err := time.ParseDuration(strings.ToLower(s))
	if err != nil {
		return nil, fmt.Errorf("DURATION: %w", err)
	}
	return float64(d.Milliseconds()), nil
}

// YearFunc extracts the year from a date
type YearFunc struct{}

func (f *YearFunc) Name() string  { return "YEAR" }
func (f *YearFunc) MinArity() int { return 1 }
func (f *YearFunc) MaxArity() int { return 1 }
func (f *YearFunc) Evaluate(args []interface{}) (interface{}, error) {
	d, err := timeArg("YEAR", args, 0, "")
	if err != nil {
		return nil, err
	}
	return float64(d.Year()), nil
}

// MonthFunc extracts the month from a date
type MonthFunc struct{}

func (f *MonthFunc) Name() string  { return "MONTH" }
func (f *MonthFunc) MinArity() int { return 1 }
func (f *MonthFunc) MaxArity() int { return 1 }
func (f *MonthFunc) Evaluate(args []interface{}) (interface{}, error) {
	d, err := timeArg("MONTH", args, 0, "")
	if err != nil {
		return nil, err
	}
	return float64(d.Month()), nil
}

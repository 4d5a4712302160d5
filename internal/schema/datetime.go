package schema

// DatetimeFormat is the display format configured for a date or time input.
type DatetimeFormat string

const (
	DateFormatDayMonthYear DatetimeFormat = "dd/MM/YYYY"
	DateFormatMonthDayYear DatetimeFormat = "MM/dd/YYYY"
	DateFormatYearMonthDay DatetimeFormat = "YYYY/MM/dd"
	DateFormatMonthYear    DatetimeFormat = "MM/YYYY"
	DateFormatDayMonth     DatetimeFormat = "dd/MM"

	TimeFormat24Seconds DatetimeFormat = "HH:mm:ss"
	TimeFormat12Seconds DatetimeFormat = "hh:mm:ss"
	TimeFormat24        DatetimeFormat = "HH:mm"
	TimeFormat12        DatetimeFormat = "hh:mm"
	TimeFormatMinSec    DatetimeFormat = "mm:ss"
)

// FormatRules describes how answers for one DatetimeFormat are read and compared.
type FormatRules struct {
	// Kind is InputTypeDate or InputTypeTime.
	Kind InputType
	// Layouts are the Go layouts of the display format, tried in order.
	Layouts []string
	// Canonical keeps only the components the format displays; two answers
	// are the same when they render identically with it.
	Canonical string
}

var formatRules = map[DatetimeFormat]FormatRules{
	DateFormatDayMonthYear: {Kind: InputTypeDate, Layouts: []string{"02/01/2006", "2/1/2006"}, Canonical: "2006-01-02"},
	DateFormatMonthDayYear: {Kind: InputTypeDate, Layouts: []string{"01/02/2006", "1/2/2006"}, Canonical: "2006-01-02"},
	DateFormatYearMonthDay: {Kind: InputTypeDate, Layouts: []string{"2006/01/02", "2006/1/2"}, Canonical: "2006-01-02"},
	DateFormatMonthYear:    {Kind: InputTypeDate, Layouts: []string{"01/2006", "1/2006"}, Canonical: "2006-01"},
	DateFormatDayMonth:     {Kind: InputTypeDate, Layouts: []string{"02/01", "2/1"}, Canonical: "01-02"},

	TimeFormat24Seconds: {Kind: InputTypeTime, Layouts: []string{"15:04:05"}, Canonical: "15:04:05"},
	TimeFormat12Seconds: {Kind: InputTypeTime, Layouts: []string{"03:04:05 PM", "3:04:05 PM", "03:04:05PM", "03:04:05"}, Canonical: "15:04:05"},
	TimeFormat24:        {Kind: InputTypeTime, Layouts: []string{"15:04"}, Canonical: "15:04"},
	TimeFormat12:        {Kind: InputTypeTime, Layouts: []string{"03:04 PM", "3:04 PM", "03:04PM", "03:04"}, Canonical: "15:04"},
	TimeFormatMinSec:    {Kind: InputTypeTime, Layouts: []string{"04:05"}, Canonical: "04:05"},
}

// Rules returns the parsing rules for f.
func (f DatetimeFormat) Rules() (FormatRules, bool) {
	rules, ok := formatRules[f]
	return rules, ok
}

// ValidFor reports whether f is one of the five formats of the given kind.
func (f DatetimeFormat) ValidFor(kind InputType) bool {
	rules, ok := formatRules[f]
	return ok && rules.Kind == kind
}

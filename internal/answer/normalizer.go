package answer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/epicollect5/epicollect5-server-sub003/internal/schema"
)

var integerPattern = regexp.MustCompile(`^[+-]?[0-9]+$`)

var (
	minLatitude  = decimal.NewFromInt(-90)
	maxLatitude  = decimal.NewFromInt(90)
	minLongitude = decimal.NewFromInt(-180)
	maxLongitude = decimal.NewFromInt(180)
)

// Normalize converts the raw JSON answer submitted for desc into its canonical Value.
// Blank or absent answers normalize to Empty. Normalize has no side effects.
func Normalize(desc schema.Descriptor, raw json.RawMessage) (Value, error) {
	if desc.Uniqueness != "" && desc.Uniqueness != schema.UniquenessNone && !desc.Type.Comparable() {
		return Empty, fmt.Errorf("%w: input %s of type %s", ErrUnsupportedUniqueness, desc.Ref, desc.Type)
	}

	if len(raw) == 0 {
		return Empty, nil
	}
	r := gjson.ParseBytes(raw)
	if r.Type == gjson.Null {
		return Empty, nil
	}

	switch desc.Type {
	case schema.InputTypeText, schema.InputTypeTextarea, schema.InputTypePhone, schema.InputTypeBarcode,
		schema.InputTypePhoto, schema.InputTypeAudio, schema.InputTypeVideo:
		return normalizeText(desc, r)
	case schema.InputTypeInteger:
		return normalizeInteger(desc, r)
	case schema.InputTypeDecimal:
		return normalizeDecimal(desc, r)
	case schema.InputTypeDate, schema.InputTypeTime:
		return normalizeDatetime(desc, r)
	case schema.InputTypeLocation:
		return normalizeLocation(desc, r)
	case schema.InputTypeRadio, schema.InputTypeDropdown, schema.InputTypeSearchSingle,
		schema.InputTypeCheckbox, schema.InputTypeSearchMultiple:
		return normalizeChoice(desc, r)
	}
	return Empty, fmt.Errorf("%w: input %s has type %s which takes no answer", ErrInvalidValue, desc.Ref, desc.Type)
}

// scalar returns the literal text of a string or number answer.
func scalar(desc schema.Descriptor, r gjson.Result) (string, error) {
	switch r.Type {
	case gjson.String:
		return r.String(), nil
	case gjson.Number:
		return r.Raw, nil
	}
	return "", fmt.Errorf("%w: input %s expects a scalar, got %s", ErrInvalidValue, desc.Ref, r.Type)
}

func normalizeText(desc schema.Descriptor, r gjson.Result) (Value, error) {
	s, err := scalar(desc, r)
	if err != nil {
		return Empty, err
	}
	if s == "" {
		return Empty, nil
	}
	// compared byte for byte; the transport has already trimmed
	return Value{Kind: KindText, Key: s}, nil
}

func normalizeInteger(desc schema.Descriptor, r gjson.Result) (Value, error) {
	s, err := scalar(desc, r)
	if err != nil {
		return Empty, err
	}
	if s == "" {
		return Empty, nil
	}
	if !integerPattern.MatchString(s) {
		return Empty, fmt.Errorf("%w: input %s: %q is not an integer", ErrInvalidValue, desc.Ref, s)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Empty, fmt.Errorf("%w: input %s: %v", ErrInvalidValue, desc.Ref, err)
	}
	return Value{Kind: KindNumber, Key: strconv.FormatInt(n, 10)}, nil
}

func normalizeDecimal(desc schema.Descriptor, r gjson.Result) (Value, error) {
	s, err := scalar(desc, r)
	if err != nil {
		return Empty, err
	}
	if s == "" {
		return Empty, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Empty, fmt.Errorf("%w: input %s: %q is not a decimal", ErrInvalidValue, desc.Ref, s)
	}
	// String trims trailing zeros, so 7, 7.0 and 7.00 share a key
	return Value{Kind: KindNumber, Key: d.String()}, nil
}

func normalizeDatetime(desc schema.Descriptor, r gjson.Result) (Value, error) {
	if r.Type != gjson.String {
		return Empty, fmt.Errorf("%w: input %s expects a string, got %s", ErrInvalidDatetime, desc.Ref, r.Type)
	}
	s := r.String()
	if s == "" {
		return Empty, nil
	}
	key, err := canonicalDatetime(desc.Format, s)
	if err != nil {
		return Empty, fmt.Errorf("input %s: %w", desc.Ref, err)
	}
	kind := KindDate
	if desc.Type == schema.InputTypeTime {
		kind = KindTime
	}
	return Value{Kind: kind, Key: key}, nil
}

func normalizeLocation(desc schema.Descriptor, r gjson.Result) (Value, error) {
	if r.Type == gjson.String && r.String() == "" {
		return Empty, nil
	}
	if !r.IsObject() {
		return Empty, fmt.Errorf("%w: input %s expects a location object", ErrInvalidValue, desc.Ref)
	}

	latRaw, lngRaw := r.Get("latitude"), r.Get("longitude")
	latEmpty := !latRaw.Exists() || latRaw.Type == gjson.Null || latRaw.String() == ""
	lngEmpty := !lngRaw.Exists() || lngRaw.Type == gjson.Null || lngRaw.String() == ""
	if latEmpty && lngEmpty {
		return Empty, nil
	}
	if latEmpty || lngEmpty {
		return Empty, fmt.Errorf("%w: input %s has a partial location", ErrInvalidValue, desc.Ref)
	}

	lat, err := coordinate(desc, latRaw, minLatitude, maxLatitude)
	if err != nil {
		return Empty, err
	}
	lng, err := coordinate(desc, lngRaw, minLongitude, maxLongitude)
	if err != nil {
		return Empty, err
	}
	return Value{Kind: KindLocation, Key: lat.String() + "," + lng.String()}, nil
}

func coordinate(desc schema.Descriptor, r gjson.Result, lower, upper decimal.Decimal) (decimal.Decimal, error) {
	s, err := scalar(desc, r)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: input %s: %q is not a coordinate", ErrInvalidValue, desc.Ref, s)
	}
	if d.LessThan(lower) || d.GreaterThan(upper) {
		return decimal.Zero, fmt.Errorf("%w: input %s: coordinate %s out of range", ErrInvalidValue, desc.Ref, d)
	}
	return d, nil
}

func normalizeChoice(desc schema.Descriptor, r gjson.Result) (Value, error) {
	choice, ok := desc.Input.(*schema.ChoiceInput)
	if !ok {
		return Empty, fmt.Errorf("%w: input %s is not a choice input", ErrInvalidValue, desc.Ref)
	}

	var refs []string
	switch {
	case r.Type == gjson.String:
		if r.String() == "" {
			return Empty, nil
		}
		if desc.Type.IsMultipleChoice() {
			return Empty, fmt.Errorf("%w: input %s expects a list of answers", ErrInvalidValue, desc.Ref)
		}
		refs = []string{r.String()}
	case r.IsArray():
		for _, item := range r.Array() {
			if item.Type != gjson.String {
				return Empty, fmt.Errorf("%w: input %s has a non-string answer ref", ErrInvalidValue, desc.Ref)
			}
			refs = append(refs, item.String())
		}
	default:
		return Empty, fmt.Errorf("%w: input %s expects answer refs, got %s", ErrInvalidValue, desc.Ref, r.Type)
	}

	refs = lo.Uniq(lo.Compact(refs))
	if len(refs) == 0 {
		return Empty, nil
	}
	if !desc.Type.IsMultipleChoice() && len(refs) > 1 {
		return Empty, fmt.Errorf("%w: input %s accepts a single answer", ErrInvalidValue, desc.Ref)
	}
	if unknown, found := lo.Find(refs, func(ref string) bool { return !choice.HasAnswerRef(ref) }); found {
		return Empty, fmt.Errorf("%w: input %s has no possible answer %q", ErrInvalidValue, desc.Ref, unknown)
	}

	sort.Strings(refs)
	return Value{Kind: KindChoice, Key: strings.Join(refs, ",")}, nil
}

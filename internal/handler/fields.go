package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/fintrack/internal/auth"
)

const (
	dateLayout       = "2006-01-02"
	amountMaxDigits  = 10
	amountMaxDecimal = 2
)

var decimalRegexp = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

const (
	msgRequired = "This field is required."
	msgNull     = "This field may not be null."
	msgBlank    = "This field may not be blank."
)

// parseDecimal reads a money amount sent either as a JSON number or a
// string. required controls whether an absent value is an error; fallback is
// returned for absent optional values.
func parseDecimal(verr auth.ValidationError, field string, raw json.RawMessage, required bool, fallback float64) float64 {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0:
		if required {
			verr.Add(field, msgRequired)
		}
		return fallback
	case string(raw) == "null":
		verr.Add(field, msgNull)
		return fallback
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			verr.Add(field, "A valid number is required.")
			return fallback
		}
		s = strings.TrimSpace(s)
	}
	if !decimalRegexp.MatchString(s) {
		verr.Add(field, "A valid number is required.")
		return fallback
	}

	whole, frac, _ := strings.Cut(strings.TrimPrefix(s, "-"), ".")
	whole = strings.TrimLeft(whole, "0")
	switch {
	case len(whole)+len(frac) > amountMaxDigits:
		verr.Add(field, fmt.Sprintf("Ensure that there are no more than %d digits in total.", amountMaxDigits))
		return fallback
	case len(frac) > amountMaxDecimal:
		verr.Add(field, fmt.Sprintf("Ensure that there are no more than %d decimal places.", amountMaxDecimal))
		return fallback
	case len(whole) > amountMaxDigits-amountMaxDecimal:
		verr.Add(field, fmt.Sprintf("Ensure that there are no more than %d digits before the decimal point.", amountMaxDigits-amountMaxDecimal))
		return fallback
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		verr.Add(field, "A valid number is required.")
		return fallback
	}
	return v
}

// parseDate accepts YYYY-MM-DD only and returns it canonicalized.
func parseDate(verr auth.ValidationError, field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		verr.Add(field, msgRequired)
		return ""
	}
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		verr.Add(field, "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
		return ""
	}
	return d.Format(dateLayout)
}

// checkText trims value and reports blank or over-long input.
func checkText(verr auth.ValidationError, field, value string, maxLen int) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		verr.Add(field, msgBlank)
	case len([]rune(value)) > maxLen:
		verr.Add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", maxLen))
	}
	return value
}

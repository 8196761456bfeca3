package entry

import (
	"strings"
	"time"

	"github.com/Vlarumal/CareVault-sub000/internal/platform/errs"
)

// dateLayouts are the accepted date representations, tried in order. All are
// coerced to the canonical calendar-date form.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02.01.2006",
}

// DateLayout is the canonical calendar-date form snapshots carry.
const DateLayout = "2006-01-02"

// CoerceDate parses any accepted date-like string and returns it as a plain
// calendar date, discarding any time component.
func CoerceDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errs.Validation("date", "is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", errs.Validation("date", "unparsable date "+s)
}

// Normalize canonicalizes an entry into the form that is persisted, hashed,
// and diffed: dates coerced to calendar dates, string leaves trimmed, empty
// optionals dropped, and the variant payload validated against its kind.
// Pure: the receiver is not mutated, and Normalize(Normalize(e)) == Normalize(e).
func Normalize(e *Entry) (*Entry, error) {
	if e == nil {
		return nil, errs.Validationf("entry is nil")
	}
	if !e.Type.Valid() {
		return nil, errs.Validation("type", "unknown entry type "+string(e.Type))
	}
	if e.Details == nil {
		return nil, errs.Validation("type", "entry has no variant payload")
	}
	if e.Details.Kind() != e.Type {
		return nil, errs.Validation("type", "variant payload does not match entry type")
	}

	n := *e

	n.Description = strings.TrimSpace(e.Description)
	if n.Description == "" {
		return nil, errs.Validation("description", "is required")
	}
	n.Specialist = strings.TrimSpace(e.Specialist)
	if n.Specialist == "" {
		return nil, errs.Validation("specialist", "is required")
	}

	date, err := CoerceDate(e.Date)
	if err != nil {
		return nil, err
	}
	n.Date = date

	n.DiagnosisCodes = normalizeCodes(e.DiagnosisCodes)

	details, err := normalizeDetails(e.Details)
	if err != nil {
		return nil, err
	}
	n.Details = details

	return &n, nil
}

// normalizeCodes trims each code and drops empties; an empty result is nil
// so absent code lists never pollute a checksum.
func normalizeCodes(codes []string) []string {
	var out []string
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func normalizeDetails(d Details) (Details, error) {
	switch v := d.(type) {
	case HealthCheckDetails:
		if v.HealthCheckRating < 0 || v.HealthCheckRating > 3 {
			return nil, errs.Validation("healthCheckRating", "must be between 0 and 3")
		}
		return v, nil

	case HospitalDetails:
		date, err := CoerceDate(v.Discharge.Date)
		if err != nil {
			return nil, errs.Validation("discharge.date", "unparsable date "+v.Discharge.Date)
		}
		criteria := strings.TrimSpace(v.Discharge.Criteria)
		if criteria == "" {
			return nil, errs.Validation("discharge.criteria", "is required")
		}
		return HospitalDetails{Discharge: Discharge{Date: date, Criteria: criteria}}, nil

	case OccupationalHealthcareDetails:
		name := strings.TrimSpace(v.EmployerName)
		if name == "" {
			return nil, errs.Validation("employerName", "is required")
		}
		out := OccupationalHealthcareDetails{EmployerName: name}
		if v.SickLeave != nil {
			sl, err := normalizeSickLeave(*v.SickLeave)
			if err != nil {
				return nil, err
			}
			out.SickLeave = sl
		}
		return out, nil
	}
	return nil, errs.Validation("type", "unknown variant payload")
}

// normalizeSickLeave returns nil when both bounds are empty, treating an
// all-blank interval the same as an absent one.
func normalizeSickLeave(sl SickLeave) (*SickLeave, error) {
	start := strings.TrimSpace(sl.StartDate)
	end := strings.TrimSpace(sl.EndDate)
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" {
		return nil, errs.Validation("sickLeave.startDate", "is required when endDate is set")
	}
	if end == "" {
		return nil, errs.Validation("sickLeave.endDate", "is required when startDate is set")
	}

	startDate, err := CoerceDate(start)
	if err != nil {
		return nil, errs.Validation("sickLeave.startDate", "unparsable date "+start)
	}
	endDate, err := CoerceDate(end)
	if err != nil {
		return nil, errs.Validation("sickLeave.endDate", "unparsable date "+end)
	}
	return &SickLeave{StartDate: startDate, EndDate: endDate}, nil
}

package orders

import (
	"strconv"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/services"
	"github.com/google/uuid"
)

// parseOrderForm turns loosely typed form values into an OrderInput. Every
// string-to-type conversion for orders happens here.
func parseOrderForm(values map[string][]string) (*OrderInput, error) {
	in := &OrderInput{Present: map[string]bool{}}
	first := func(name string) (string, bool) {
		v, ok := values[name]
		if !ok || len(v) == 0 {
			return "", false
		}
		in.Present[name] = true
		return strings.TrimSpace(v[0]), true
	}

	for _, f := range textFields {
		if v, ok := first(f.Name); ok {
			*f.Get(&in.Text) = v
		}
	}

	for _, f := range flagFields {
		if v, ok := first(f.Name); ok {
			b, err := parseFormBool(v)
			if err != nil {
				return nil, services.Validation("%s must be true or false", f.Name)
			}
			*f.Get(&in.Flags) = b
		}
	}

	if raw, ok := values["surveyors"]; ok {
		in.Present["surveyors"] = true
		in.Surveyors = parseSurveyors(raw)
	}
	if raw, ok := values["pictures"]; ok {
		in.Present["pictures"] = true
		in.Keep = joinLists(raw)
	}

	if v, ok := first("numberOfEntryPoints"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, services.Validation("numberOfEntryPoints must be a non-negative integer")
		}
		in.NumberOfEntryPoints = n
	}

	if v, ok := first("locationId"); ok && v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, services.Validation("locationId is not a valid id")
		}
		in.LocationID = &id
	}

	if v, ok := first("dateOfSurvey"); ok && v != "" {
		t, err := parseSurveyDate(v)
		if err != nil {
			return nil, services.Validation("dateOfSurvey must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
		}
		in.DateOfSurvey = &t
	}

	return in, nil
}

// joinLists normalizes repeated form values, each of which may itself be a
// JSON array or a comma-separated list.
func joinLists(raw []string) []string {
	out := []string{}
	for _, v := range raw {
		out = append(out, ParseKeepList(v)...)
	}
	return out
}

// parseSurveyors accepts repeated values, each a JSON array or one name.
// Names may contain commas ("Doe, Jane"), so plain values are never split.
func parseSurveyors(raw []string) []string {
	out := []string{}
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			out = append(out, ParseKeepList(v)...)
			continue
		}
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseFormBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true", "on", "1", "yes":
		return true, nil
	case "false", "off", "0", "no", "":
		return false, nil
	}
	return false, strconv.ErrSyntax
}

func parseSurveyDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// parseSearchQuery reads search filters from query parameters.
func parseSearchQuery(get func(string) string) (*SearchQuery, error) {
	q := &SearchQuery{Text: strings.TrimSpace(get("q")), Flags: map[string]bool{}}

	for _, f := range flagFields {
		v := get(f.Name)
		if v == "" {
			continue
		}
		b, err := parseFormBool(v)
		if err != nil {
			return nil, services.Validation("%s must be true or false", f.Name)
		}
		q.Flags[f.Column] = b
	}

	for name, dst := range map[string]**uuid.UUID{"locationId": &q.LocationID, "userId": &q.UserID} {
		if v := get(name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return nil, services.Validation("%s is not a valid id", name)
			}
			*dst = &id
		}
	}

	for name, dst := range map[string]**time.Time{"from": &q.From, "to": &q.To} {
		if v := get(name); v != "" {
			t, err := parseSurveyDate(v)
			if err != nil {
				return nil, services.Validation("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", name)
			}
			if name == "to" && len(v) == len(time.DateOnly) {
				// A bare end date includes the whole day.
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			*dst = &t
		}
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, services.Validation("to must not be before from")
	}
	return q, nil
}

package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"weekly-planner/internal/shared"
)

const maxBodyBytes = 1 << 20

// fields holds a decoded JSON object so each field can be checked for presence
// and type on its own.
type fields map[string]json.RawMessage

func decodeFields(w http.ResponseWriter, r *http.Request) (fields, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, shared.Validation("body_too_large", "request body too large")
		}
		return nil, shared.Validation("invalid_json", "failed to read request body")
	}

	var f fields
	if err := json.Unmarshal(body, &f); err != nil || f == nil {
		return nil, shared.Validation("invalid_json", "request body must be a JSON object")
	}
	return f, nil
}

func (f fields) present(name string) bool {
	raw, ok := f[name]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// integer reads a required integer field. Numeric strings are accepted.
func (f fields) integer(name, missingCode, invalidCode string) (int64, error) {
	if !f.present(name) {
		return 0, shared.Validation(missingCode, name+" is required")
	}
	n, ok := parseInteger(f[name])
	if !ok {
		return 0, shared.Validation(invalidCode, name+" must be an integer")
	}
	return n, nil
}

// optionalInteger reads an integer field that may be absent or null.
func (f fields) optionalInteger(name, invalidCode string) (*int64, error) {
	if !f.present(name) {
		return nil, nil
	}
	n, ok := parseInteger(f[name])
	if !ok {
		return nil, shared.Validation(invalidCode, name+" must be an integer")
	}
	return &n, nil
}

func (f fields) boolean(name, missingCode, invalidCode string) (bool, error) {
	if !f.present(name) {
		return false, shared.Validation(missingCode, name+" is required")
	}
	var b bool
	if err := json.Unmarshal(f[name], &b); err != nil {
		return false, shared.Validation(invalidCode, name+" must be a boolean")
	}
	return b, nil
}

func (f fields) optionalBoolean(name, invalidCode string) (*bool, error) {
	if !f.present(name) {
		return nil, nil
	}
	b, err := f.boolean(name, invalidCode, invalidCode)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (f fields) str(name, missingCode, invalidCode string) (string, error) {
	if !f.present(name) {
		return "", shared.Validation(missingCode, name+" is required")
	}
	var s string
	if err := json.Unmarshal(f[name], &s); err != nil {
		return "", shared.Validation(invalidCode, name+" must be a string")
	}
	return s, nil
}

func parseInteger(raw json.RawMessage) (int64, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return n, err == nil
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, false
	}
	if n, err := num.Int64(); err == nil {
		return n, true
	}
	// Integral values written with a fraction or exponent, such as 2.0.
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

// intParam parses a path or query value that must be an integer.
func intParam(raw, name, missingCode, invalidCode string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, shared.Validation(missingCode, name+" is required")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shared.Validation(invalidCode, name+" must be an integer")
	}
	return n, nil
}

// clampInt narrows a decoded value to int range; out-of-range values are
// rejected by request validation afterwards.
func clampInt(n int64) int {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	if n < math.MinInt32 {
		return math.MinInt32
	}
	return int(n)
}

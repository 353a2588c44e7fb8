// Package validate turns raw request payloads into model instances.
//
// Validation runs in two stages. The structural stage checks the payload
// against a declared field schema: every expected field must be present and
// coercible to its primitive kind, and failures are collected into one
// ValidationError with a pointer per offending field. Business rules (tick
// bounds, selected tick range) run only once the structural stage passed.
// Uniqueness constraints are deliberately not checked here; they need data
// access and belong to the service layer.
package validate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"concha-api/internal/models"
	"concha-api/internal/problem"
)

// Kind enumerates the primitive kinds the structural stage understands.
type Kind int

const (
	String Kind = iota
	Int
	Float
	Sequence
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int:
		return "integer"
	case Float:
		return "float"
	case Sequence:
		return "list"
	default:
		return "unknown"
	}
}

// Field pairs an expected payload field with its primitive kind.
type Field struct {
	Name string
	Kind Kind
}

var userInfoFields = []Field{
	{Name: "name", Kind: String},
	{Name: "email", Kind: String},
	{Name: "address", Kind: String},
}

var audioFields = []Field{
	{Name: "session_id", Kind: Int},
	{Name: "ticks", Kind: Sequence},
	{Name: "selected_tick", Kind: Int},
	{Name: "step_count", Kind: Int},
}

// Audio business-rule bounds.
const (
	tickCount       = 15
	tickMin         = -100.0
	tickMax         = -10.0
	selectedTickMin = 0
	selectedTickMax = 14
)

func missingField(name string) problem.SubError {
	return problem.SubError{
		Detail:  fmt.Sprintf("Request is missing field '%s'", name),
		Pointer: name,
	}
}

func wrongFieldType(name string, kind Kind, value any) problem.SubError {
	return problem.SubError{
		Detail:  fmt.Sprintf("'%v' is not a valid value for request field '%s', expected a %s.", value, name, kind),
		Pointer: name,
	}
}

// CheckFields runs the structural stage for the given schema over a raw
// payload. Fields named in exclude are skipped (server-assigned fields such
// as the user id); unknown payload keys are ignored. The returned slice is
// nil when the payload is structurally valid.
func CheckFields(data map[string]any, fields []Field, exclude ...string) []problem.SubError {
	skipped := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skipped[name] = struct{}{}
	}

	var subErrors []problem.SubError
	for _, field := range fields {
		if _, skip := skipped[field.Name]; skip {
			continue
		}
		value, present := data[field.Name]
		if !present {
			subErrors = append(subErrors, missingField(field.Name))
			continue
		}
		if !coercible(value, field.Kind) {
			subErrors = append(subErrors, wrongFieldType(field.Name, field.Kind, value))
		}
	}
	return subErrors
}

// coercible reports whether a decoded JSON value can serve as the given
// primitive kind. Numbers arrive as json.Number because the handlers decode
// with UseNumber. Sequences are checked by container type only; element
// kinds are a business-rule concern.
func coercible(value any, kind Kind) bool {
	switch kind {
	case String:
		_, ok := value.(string)
		return ok
	case Int:
		_, ok := asInt(value)
		return ok
	case Float:
		_, ok := asFloat(value)
		return ok
	case Sequence:
		_, ok := value.([]any)
		return ok
	default:
		return false
	}
}

func asInt(value any) (int64, bool) {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		// Integral floats such as 5.0 still count as integers.
		if f, err := v.Float64(); err == nil && f == float64(int64(f)) {
			return int64(f), true
		}
		return 0, false
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
		return 0, false
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// emailShape is deliberately minimal: the address only needs an @ splitting
// a local part from a domain so that normalization is well defined.
var emailShape = regexp.MustCompile(`.+@.+`)

// ValidEmail reports whether the address has the minimal local@domain shape.
func ValidEmail(email string) bool {
	return emailShape.MatchString(email)
}

// NormalizeEmail lowercases only the domain portion (after the last @),
// preserving the case of the local part. Addresses without an @ are
// returned trimmed but otherwise untouched.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// UserInfo validates a raw payload and builds the account model. The email
// must have the minimal valid shape and is stored normalized. The id and
// hosted image link are server-assigned and never read from the payload.
func UserInfo(data map[string]any) (models.UserInfo, error) {
	if subErrors := CheckFields(data, userInfoFields, "id", "image_hosted_link"); len(subErrors) > 0 {
		return models.UserInfo{}, problem.NewValidationDetailed(subErrors...)
	}

	email, _ := data["email"].(string)
	if !ValidEmail(email) {
		return models.UserInfo{}, problem.NewValidationDetailed(problem.SubError{
			Detail:  fmt.Sprintf("'%s' is not a valid email.", email),
			Pointer: "email",
		})
	}

	name, _ := data["name"].(string)
	address, _ := data["address"].(string)
	return models.UserInfo{
		Name:    name,
		Email:   NormalizeEmail(email),
		Address: address,
	}, nil
}

// Audio validates a raw payload and builds the audio model. Business rules
// run only after the structural stage passed, and their violations are
// collected into one combined failure rather than short-circuiting.
func Audio(data map[string]any) (models.Audio, error) {
	if subErrors := CheckFields(data, audioFields, "id"); len(subErrors) > 0 {
		return models.Audio{}, problem.NewValidationDetailed(subErrors...)
	}

	sessionID, _ := asInt(data["session_id"])
	selectedTick64, _ := asInt(data["selected_tick"])
	stepCount64, _ := asInt(data["step_count"])
	rawTicks, _ := data["ticks"].([]any)

	var subErrors []problem.SubError

	ticks := make([]float64, 0, len(rawTicks))
	ticksNumeric := true
	for _, raw := range rawTicks {
		tick, ok := asFloat(raw)
		if !ok {
			subErrors = append(subErrors, problem.SubError{
				Detail:  fmt.Sprintf("'%v' is not a valid value for request field 'ticks', expected a list of floats.", rawTicks),
				Pointer: "ticks",
			})
			ticksNumeric = false
			break
		}
		ticks = append(ticks, tick)
	}

	if ticksNumeric && !ticksInRange(ticks) {
		subErrors = append(subErrors, problem.SubError{
			Detail: fmt.Sprintf("'%v' is not a valid value for request field 'ticks', must be %d values and range from %.1f to %.1f", ticks, tickCount, tickMax, tickMin),
		})
	}

	selectedTick := int(selectedTick64)
	if selectedTick < selectedTickMin || selectedTick > selectedTickMax {
		subErrors = append(subErrors, problem.SubError{
			Detail: fmt.Sprintf("'%d' is not a valid value for request field 'selected_tick', must be between %d and %d", selectedTick, selectedTickMin, selectedTickMax),
		})
	}

	if len(subErrors) > 0 {
		return models.Audio{}, problem.NewValidationDetailed(subErrors...)
	}

	return models.Audio{
		SessionID:    sessionID,
		Ticks:        ticks,
		SelectedTick: selectedTick,
		StepCount:    int(stepCount64),
	}, nil
}

func ticksInRange(ticks []float64) bool {
	if len(ticks) != tickCount {
		return false
	}
	for _, tick := range ticks {
		if tick < tickMin || tick > tickMax {
			return false
		}
	}
	return true
}

package sales

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidInput is matched by every error that should be reported to the caller as a
// bad request.
var ErrInvalidInput = errors.New("invalid input")

// FieldError names a field and the constraint it violated.
type FieldError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Constraint
}

// ValidationError collects every violated constraint of one request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field, constraint string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Constraint: constraint}}}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Decode reads one JSON request body. Unknown fields are ignored; malformed JSON and
// values of the wrong JSON type are reported as validation errors.
func Decode(r io.Reader) (RawRequest, error) {
	var raw RawRequest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return RawRequest{}, decodeError(err)
	}
	if dec.More() {
		return RawRequest{}, invalid("body", "must contain a single JSON object")
	}
	return raw, nil
}

// Year is a calendar year. Besides integers it accepts JSON numbers with a zero
// fraction such as 1999.0.
type Year int

func (y *Year) UnmarshalJSON(data []byte) error {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return invalid(FieldOutletEstablished, "must be an integer")
	}
	*y = Year(f)
	return nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		return validationErr
	case errors.Is(err, io.EOF):
		return invalid("body", "request body is empty")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return invalid(field, "must be "+jsonKind(typeErr.Type))
	case errors.As(err, &syntaxErr):
		return invalid("body", fmt.Sprintf("invalid JSON at offset %d", syntaxErr.Offset))
	default:
		return invalid("body", err.Error())
	}
}

func jsonKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "an integer"
	case reflect.String:
		return "a string"
	case reflect.Struct:
		return "a JSON object"
	default:
		return "of type " + t.String()
	}
}

// Validate checks every range and enum constraint and returns the immutable request.
// Nothing downstream runs unless this succeeds.
func Validate(raw RawRequest) (Request, error) {
	if err := validate.Struct(raw); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Request{}, fmt.Errorf("validate request: %w", err)
		}
		out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
		for _, fe := range verrs {
			out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Constraint: describe(fe)})
		}
		return Request{}, out
	}

	return Request{
		ItemWeight:              *raw.ItemWeight,
		ItemFatContent:          *raw.ItemFatContent,
		ItemVisibility:          *raw.ItemVisibility,
		ItemMRP:                 *raw.ItemMRP,
		OutletSize:              *raw.OutletSize,
		OutletLocationType:      *raw.OutletLocationType,
		OutletType:              *raw.OutletType,
		OutletEstablishmentYear: int(*raw.OutletEstablishmentYear),
		ItemType:                optional(raw.ItemType),
		OutletIdentifier:        optional(raw.OutletIdentifier),
	}, nil
}

// DecodeAndValidate is Decode followed by Validate.
func DecodeAndValidate(r io.Reader) (Request, error) {
	raw, err := Decode(r)
	if err != nil {
		return Request{}, err
	}
	return Validate(raw)
}

// optional treats blank strings as absent and NFC-normalises the rest so that
// canonically equivalent category names land on the same indicator column.
func optional(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := norm.NFC.String(*s)
	return &v
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "oneof":
		return "must be one of " + strings.Join(oneOfValues(fe.Param()), ", ")
	default:
		return fmt.Sprintf("failed %q constraint", fe.Tag())
	}
}

// oneOfValues splits a oneof parameter such as `'Low Fat' 'Regular'` into quoted values.
func oneOfValues(param string) []string {
	var values []string
	for _, part := range strings.Split(param, "' '") {
		values = append(values, "'"+strings.Trim(part, "'")+"'")
	}
	return values
}

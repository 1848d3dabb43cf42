package riskscore

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	apperrors "github.com/ajharbinger/riskscore-preview/internal/errors"
)

//go:embed preview_request.schema.json
var previewRequestSchemaJSON string

const previewRequestSchemaName = "preview_request.schema.json"

// previewRequestSchema is the compiled schema for the preview request body
var previewRequestSchema = mustCompileSchema(previewRequestSchemaJSON, previewRequestSchemaName)

var schemaPrinter = message.NewPrinter(language.English)

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// DecodePreviewRequest validates a raw JSON body against the preview request
// schema and decodes it. Any problem is reported as a validation error naming
// the offending field.
func DecodePreviewRequest(r io.Reader) (*PreviewRequest, error) {
	doc, err := jsonschema.UnmarshalJSON(r)
	if err != nil {
		return nil, apperrors.ValidationError("request body must be a valid JSON object", err).
			WithOperation("DecodePreviewRequest")
	}

	if err := previewRequestSchema.Validate(doc); err != nil {
		return nil, schemaError(err)
	}

	var req PreviewRequest
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &req,
		ErrorUnused: true,
		TagName:     "mapstructure",
		DecodeHook:  wholeNumberToInt,
	})
	if err != nil {
		return nil, apperrors.InternalError("failed to create request decoder", err)
	}
	if err := decoder.Decode(doc); err != nil {
		appErr := apperrors.ValidationError("request body does not match the preview request shape", err).
			WithOperation("DecodePreviewRequest")
		var de *mapstructure.DecodeError
		if errors.As(err, &de) {
			appErr.Message = fmt.Sprintf("[request body]: %s: cannot be decoded", de.Name())
			appErr.WithField(de.Name())
		}
		return nil, appErr
	}

	return &req, nil
}

// wholeNumberToInt lets integer fields accept numbers written with a
// fractional part of zero, such as 2.0, which the schema treats as integers
func wholeNumberToInt(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	n, ok := data.(json.Number)
	if !ok {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
	default:
		return data, nil
	}
	if _, err := n.Int64(); err == nil {
		return data, nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return data, nil
	}
	return int64(f), nil
}

type schemaViolation struct {
	field   string
	message string
}

func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return apperrors.ValidationError(err.Error(), err)
	}

	var violations []schemaViolation
	collectViolations(ve, &violations)
	if len(violations) == 0 {
		return apperrors.ValidationError(err.Error(), err)
	}
	sort.SliceStable(violations, func(i, j int) bool { return violations[i].field < violations[j].field })

	first := violations[0]
	appErr := apperrors.ValidationError(fmt.Sprintf("[request body]: %s: %s", displayField(first.field), first.message), err).
		WithField(first.field)
	if len(violations) > 1 {
		details := make([]string, 0, len(violations))
		for _, v := range violations {
			details = append(details, displayField(v.field)+": "+v.message)
		}
		appErr.WithDetails(strings.Join(details, "; "))
	}
	return appErr
}

func collectViolations(ve *jsonschema.ValidationError, out *[]schemaViolation) {
	if len(ve.Causes) > 0 {
		for _, c := range ve.Causes {
			collectViolations(c, out)
		}
		return
	}

	field := strings.Join(ve.InstanceLocation, ".")
	switch k := ve.ErrorKind.(type) {
	case *kind.Required:
		if len(k.Missing) > 0 {
			field = joinField(field, k.Missing[0])
		}
	case *kind.AdditionalProperties:
		if len(k.Properties) > 0 {
			field = joinField(field, k.Properties[0])
		}
	}

	*out = append(*out, schemaViolation{
		field:   field,
		message: ve.ErrorKind.LocalizedString(schemaPrinter),
	})
}

func joinField(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func displayField(field string) string {
	if field == "" {
		return "(root)"
	}
	return field
}

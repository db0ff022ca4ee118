package format

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"mercator-hq/courier/pkg/export"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(customFormatStructValidation, CustomFormat{})
	return v
}

// customFormatStructValidation checks the rules tags cannot express: mapped
// fields must exist for the record type and delimiters must be single runes.
func customFormatStructValidation(sl validator.StructLevel) {
	cf := sl.Current().Interface().(CustomFormat)

	if _, ok := parseSingleRune(cf.Delimiter, ','); !ok {
		sl.ReportError(cf.Delimiter, "delimiter", "Delimiter", "single_char", "")
	}
	if _, ok := parseSingleRune(cf.Enclosure, '"'); !ok {
		sl.ReportError(cf.Enclosure, "enclosure", "Enclosure", "single_char", "")
	}

	if !cf.RecordType.HasSubItems() && (cf.RowMode != "" || cf.ItemEncoding != "") {
		sl.ReportError(cf.RowMode, "row_mode", "RowMode", "orders_only", "")
	}

	known := KnownFields(cf.RecordType)
	for i, e := range cf.Mapping {
		if e.Source != SourceField {
			continue
		}
		if _, ok := known[e.Value]; !ok {
			sl.ReportError(e.Value, fmt.Sprintf("mapping[%d].value", i), "Value", "known_field", e.Value)
		}
	}
}

// ValidateCustomFormat checks a custom format before it is saved. Failures
// are returned as a FormatError naming the first offending field.
func ValidateCustomFormat(cf *CustomFormat) error {
	if cf == nil {
		return export.NewFormatError("", "", "", "format is nil")
	}
	err := validate.Struct(cf)
	if err == nil {
		delimiter, _ := parseSingleRune(cf.Delimiter, ',')
		enclosure, _ := parseSingleRune(cf.Enclosure, '"')
		if err := validateDelimiters(cf.RecordType, cf.Key, delimiter, enclosure); err != nil {
			return err
		}
		_, err = resolve(cf, nil)
		return err
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return export.NewFormatError(cf.RecordType, cf.Key, "", err.Error())
	}
	fe := verrs[0]
	return export.NewFormatError(cf.RecordType, cf.Key, fieldPath(fe), describe(fe))
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_unless", "required_without":
		return "value is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "single_char":
		return "must be a single character"
	case "orders_only":
		return "row mode and item encoding apply to orders only"
	case "known_field":
		return fmt.Sprintf("unknown field %q", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

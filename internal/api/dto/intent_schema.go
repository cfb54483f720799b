package dto

import (
	_ "embed"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	apperrors "github.com/spec-kit/guild-tickets/pkg/util/errorutil"
)

//go:embed intent.schema.json
var intentSchemaJSON []byte

const maxReportedSchemaErrors = 5

var (
	intentSchemaOnce sync.Once
	intentSchema     *gojsonschema.Schema
	intentSchemaErr  error
)

func compiledIntentSchema() (*gojsonschema.Schema, error) {
	intentSchemaOnce.Do(func() {
		intentSchema, intentSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(intentSchemaJSON))
	})
	return intentSchema, intentSchemaErr
}

// ValidateIntent checks a raw intent body against the schema. Violations are
// VALIDATION_FAILED with the first few messages in details.
func ValidateIntent(body []byte) error {
	schema, err := compiledIntentSchema()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if res.Valid() {
		return nil
	}
	var msgs []string
	for i, e := range res.Errors() {
		if i >= maxReportedSchemaErrors {
			break
		}
		msgs = append(msgs, e.String())
	}
	return apperrors.NewValidationError("intent does not match schema", map[string]any{
		"violations": msgs,
	})
}

package validation_test

import (
	"errors"
	"math"
	"testing"

	"github.com/inbucket/courier/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID    string   `json:"entity_id" validate:"required,max=4"`
	Name  string   `json:"display_name" validate:"max=3"`
	Hint  *float64 `json:"ranking_hint" validate:"omitempty,notnan,gte=0,lte=100"`
	Logo  string   `json:"logo_url" validate:"omitempty,url"`
	Inner string   `validate:"omitempty,headername"`
}

func newValidator(t *testing.T) *validation.Validator {
	t.Helper()
	v, err := validation.New()
	require.NoError(t, err)
	return v
}

func TestValidateOK(t *testing.T) {
	v := newValidator(t)
	hint := 100.0
	assert.NoError(t, v.Validate(&sample{ID: "abcd", Name: "äöü", Hint: &hint}))
}

func TestValidateReportsJSONNames(t *testing.T) {
	v := newValidator(t)
	hint := 101.0
	err := v.Validate(&sample{Name: "long", Hint: &hint, Logo: "not a url", Inner: "Bad:Name"})

	var verr validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t,
		[]string{"Inner", "display_name", "entity_id", "logo_url", "ranking_hint"},
		verr.Fields())
	assert.Contains(t, verr["entity_id"], "required")
	assert.Equal(t, "Inner must be a valid header name", verr["Inner"])
}

func TestValidateNaN(t *testing.T) {
	v := newValidator(t)
	hint := math.NaN()
	err := v.Validate(&sample{ID: "a", Hint: &hint})

	var verr validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "ranking_hint must be a number", verr["ranking_hint"])
}

func TestErrorHelpers(t *testing.T) {
	e := validation.Error{}
	assert.NoError(t, e.OrNil())
	assert.Equal(t, "validation error", e.Error())

	e.Merge(validation.Field("to", "first"))
	e.Merge(validation.Fieldf("to", "second %d", 2))
	e.Merge(validation.Field("subject", "missing"))
	assert.Equal(t, "first", e["to"])
	assert.Equal(t, `{"subject":"missing","to":"first"}`, e.Error())
	assert.Error(t, e.OrNil())
}

func TestValidHeaderName(t *testing.T) {
	assert.True(t, validation.ValidHeaderName("X-Campaign"))
	assert.False(t, validation.ValidHeaderName(""))
	assert.False(t, validation.ValidHeaderName("X Campaign"))
	assert.False(t, validation.ValidHeaderName("X:Campaign"))
}

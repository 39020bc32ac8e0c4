package validator

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
}

func TestValidate_OK(t *testing.T) {
	in := registerInput{Email: "alice@example.com", Password: "hunter2hunter2", Name: "Alice"}
	assert.NoError(t, Validate(in))
}

func TestValidate_FieldMessages(t *testing.T) {
	in := registerInput{Email: "not-an-email", Password: "short"}

	err := Validate(in)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	fields := verr.Fields()
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be at least 8 characters", fields["password"])
	assert.Equal(t, "is required", fields["name"])
}

func TestDecodeAndValidate(t *testing.T) {
	body := `{"email":"alice@example.com","password":"hunter2hunter2","name":"Alice"}`
	r := httptest.NewRequest("POST", "/auth/register", strings.NewReader(body))

	var in registerInput
	require.NoError(t, DecodeAndValidate(r, &in))
	assert.Equal(t, "alice@example.com", in.Email)
}

func TestDecodeAndValidate_BadJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/register", strings.NewReader("{not json"))

	var in registerInput
	err := DecodeAndValidate(r, &in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

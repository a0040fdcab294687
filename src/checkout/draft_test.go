package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDraftValidate(t *testing.T) {
	d := Draft{FullName: "Amina Wanjiru", Email: "amina@example.com", Phone: "254712345678"}
	assert.Nil(t, d.Validate())
}

func TestDraftValidateMissingFields(t *testing.T) {
	d := Draft{}
	err := d.Validate()
	assert.NotNil(t, err)
	assert.Contains(t, err.Fields, "full_name")
	assert.Contains(t, err.Fields, "email")
	assert.Contains(t, err.Fields, "phone")
}

func TestDraftValidateBadEmail(t *testing.T) {
	d := Draft{FullName: "Amina Wanjiru", Email: "not-an-email", Phone: "254712345678"}
	err := d.Validate()
	assert.NotNil(t, err)
	assert.Contains(t, err.Fields, "email")
	assert.NotContains(t, err.Fields, "full_name")
}

func TestDraftValidateWhitespaceOnly(t *testing.T) {
	d := Draft{FullName: "   ", Email: "amina@example.com", Phone: "  "}
	err := d.Validate()
	assert.NotNil(t, err)
	assert.Contains(t, err.Fields, "full_name")
	assert.Contains(t, err.Fields, "phone")
}

package controllers

import (
	"safaribuddy/src/types"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrationStatus(t *testing.T) {
	assert.Equal(t, types.USER_ACTIVE, registrationStatus(types.ROLE_TOURIST))
	assert.Equal(t, types.USER_PENDING, registrationStatus(types.ROLE_GUIDE))
	assert.Equal(t, types.USER_PENDING, registrationStatus(types.ROLE_COMPANY))
}

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("member@sacco.et"))
	assert.False(t, IsValidEmail("member@sacco"))
	assert.False(t, IsValidEmail("mem ber@sacco.et"))
}

func TestIsValidPassword(t *testing.T) {
	assert.True(t, IsValidPassword("Passw0rd!"))
	assert.False(t, IsValidPassword("short1!"))
	assert.False(t, IsValidPassword("NoDigits!!"))
	assert.False(t, IsValidPassword("NoSpecial123"))
}

func TestIsValidFullname(t *testing.T) {
	assert.True(t, IsValidFullname("Abebe Bikila"))
	assert.True(t, IsValidFullname("አበበ ቢቂላ"))
	assert.True(t, IsValidFullname("O'Neil-Smith Jr."))
	assert.False(t, IsValidFullname("   "))
	assert.False(t, IsValidFullname("R2-D2"))
}

func TestIsValidPhone(t *testing.T) {
	assert.True(t, IsValidPhone("+251911234567"))
	assert.True(t, IsValidPhone("0911 23 45 67"))
	assert.False(t, IsValidPhone("12345"))
	assert.False(t, IsValidPhone("phone"))
}

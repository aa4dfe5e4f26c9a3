package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidPIN(t *testing.T) {
	for pin, want := range map[string]bool{
		"1234":    true,
		"123456":  true,
		"123":     false,
		"1234567": false,
		"12a4":    false,
		"":        false,
	} {
		assert.Equal(t, want, ValidPIN(pin), "pin %q", pin)
	}
}

func TestSetAndVerifyPIN(t *testing.T) {
	u := &User{ID: "u1", Name: "Alice"}
	require.NoError(t, u.SetPIN("4321"))
	assert.NotEqual(t, "4321", u.PinHash)
	assert.True(t, u.VerifyPIN("4321"))
	assert.False(t, u.VerifyPIN("1234"))

	assert.ErrorIs(t, u.SetPIN("12"), ErrInvalidPIN)
}

func TestPublicHidesHash(t *testing.T) {
	u := &User{ID: "u1", Name: "Alice", PinHash: "secret"}
	assert.Empty(t, u.Public().PinHash)
	assert.Equal(t, "secret", u.PinHash)
}

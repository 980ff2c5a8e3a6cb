package audit

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                "***",
		"a@b":             "***",
		"ann@example.com": "an***@example.com",
		"a@example.com":   "a***@example.com",
		"no-at-sign":      "no***",
	}
	for in, want := range cases {
		assert.Equal(t, want, maskEmail(in), "input %q", in)
	}
}

func TestRecord_MasksEmailAndPicksLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf))

	l.Record("auth.login", map[string]string{
		"result":  "success",
		"email":   "ann@example.com",
		"user_id": "u1",
	})
	l.Record("auth.login", map[string]string{
		"result":     "error",
		"error_code": "incorrect_password",
	})

	dec := json.NewDecoder(&buf)

	var first map[string]any
	require.NoError(t, dec.Decode(&first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, true, first["audit"])
	assert.Equal(t, "auth.login", first["action"])
	assert.Equal(t, "an***@example.com", first["email"])
	assert.Equal(t, "u1", first["user_id"])

	var second map[string]any
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, "warn", second["level"])
	assert.Equal(t, "incorrect_password", second["error_code"])
}

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestVapidCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := vapidCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	pub, ok := strings.CutPrefix(lines[0], "VAPID_PUBLIC_KEY=")
	require.True(t, ok)
	priv, ok := strings.CutPrefix(lines[1], "VAPID_PRIVATE_KEY=")
	require.True(t, ok)
	assert.NotEmpty(t, pub)
	assert.NotEmpty(t, priv)
	assert.NotEqual(t, pub, priv)
}

func TestHashPasswordCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := hashPasswordCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--cost", "4", "s3cret"})
	require.NoError(t, cmd.Execute())

	hash, ok := strings.CutPrefix(strings.TrimSpace(out.String()), "ADMIN_PASSWORD_HASH=")
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))

	cmd = hashPasswordCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}

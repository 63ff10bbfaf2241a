package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qabulxona/backend/internal/api/handler"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTokenCommand_MintsVerifiableToken(t *testing.T) {
	t.Setenv("API_JWT_SECRET", "s3cret")

	out, err := execute(t, "token", "42", "--ttl", "1h")
	require.NoError(t, err)

	adminID, err := handler.ParseToken([]byte("s3cret"), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, int64(42), adminID)
}

func TestTokenCommand_RequiresSecret(t *testing.T) {
	t.Setenv("API_JWT_SECRET", "")

	_, err := execute(t, "token", "42")
	assert.ErrorContains(t, err, "API_JWT_SECRET")
}

func TestBlockCommand_RejectsBadUserID(t *testing.T) {
	_, err := execute(t, "block", "abc")
	assert.ErrorContains(t, err, "invalid user id")
}

func TestStatusCommand_RejectsUnknownStatus(t *testing.T) {
	_, err := execute(t, "status", "1001_1", "Done")
	assert.Error(t, err)
}

func TestBlockCommand_OpensBlockCache(t *testing.T) {
	t.Setenv("DATABASE_URL", "host=127.0.0.1 port=1 user=qabulxona dbname=qabulxona sslmode=disable connect_timeout=1")
	t.Setenv("REDIS_ADDR", "127.0.0.1:1")

	_, err := execute(t, "block", "77")
	assert.ErrorContains(t, err, "connect redis")

	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", mr.Addr())

	_, err = execute(t, "block", "77")
	assert.ErrorContains(t, err, "connect postgres")
	assert.Equal(t, mr.Addr(), cfg.RedisAddr)
}

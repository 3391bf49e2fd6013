//go:build !integration

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-billing/internal/domain/model"
)

func TestSeedCatalog(t *testing.T) {
	plans, err := seedCatalog()
	require.NoError(t, err)

	bySlug := map[string]*model.Plan{}
	for _, p := range plans {
		bySlug[p.Slug] = p
	}
	require.Contains(t, bySlug, "pro", "the default trial plan must be seeded")
	assert.Equal(t, model.Unlimited, bySlug["business"].MaxUsers)
	assert.Equal(t, model.Unlimited, bySlug["business"].MaxWorkspaces)
	assert.Equal(t, 1, bySlug["free"].MaxWorkspaces)
}

func TestFormatSums(t *testing.T) {
	assert.Equal(t, "-", formatSums(nil))
	assert.Equal(t, "INR 99900, USD 1900", formatSums(map[string]int64{"USD": 1900, "INR": 99900}))
}

func TestTokenCmd(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://localhost/billing")
	t.Setenv("JWT_SECRET", "cli-secret")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "user-42", "--config", filepath.Join(t.TempDir(), "none.yaml")})
	require.NoError(t, rootCmd.Execute())

	tok := strings.TrimSpace(out.String())
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) { return []byte("cli-secret"), nil })
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

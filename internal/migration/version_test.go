package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestVersion(t *testing.T) {
	latest, err := LatestVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)
}

func TestVersionOf(t *testing.T) {
	v, ok := versionOf("000002_create_referral_purchases.up.sql")
	assert.True(t, ok)
	assert.Equal(t, uint(2), v)

	_, ok = versionOf("create.up.sql")
	assert.False(t, ok)

	_, ok = versionOf("abc_create.up.sql")
	assert.False(t, ok)
}

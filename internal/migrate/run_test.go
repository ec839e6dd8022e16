package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersions_SortedAndEmbedded(t *testing.T) {
	versions, err := Versions()
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.Equal(t, "0001_app_registrations", versions[0])
	assert.IsNonDecreasing(t, versions)

	for _, v := range versions {
		body, readErr := migrationsFS.ReadFile("migrations/" + v + ".sql")
		require.NoError(t, readErr)
		assert.NotEmpty(t, body, v)
	}
}

package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsPaired(t *testing.T) {
	names, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups[strings.TrimSuffix(n, ".up.sql")] = true
		case strings.HasSuffix(n, ".down.sql"):
			downs[strings.TrimSuffix(n, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %s", n)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestSlotIndexMatchesStorageConstraint(t *testing.T) {
	raw, err := fs.ReadFile(FS, "0002_appointments.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "appointments_active_slot_key")
}

func TestDriverURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/clinic", driverURL("postgres://u:p@db:5432/clinic"))
	assert.Equal(t, "pgx5://db/clinic", driverURL("postgresql://db/clinic"))
	assert.Equal(t, "pgx5://db/clinic", driverURL("pgx5://db/clinic"))
}

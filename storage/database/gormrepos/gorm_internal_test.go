package gormrepos

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/trezcool/campusdeals/core"
)

// openDryRun returns a session that builds statements without running them.
func openDryRun(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{DryRun: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func Test_roleList(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  roleList
	}{
		{name: "null", value: nil, want: roleList{}},
		{name: "empty", value: "", want: roleList{}},
		{name: "one role", value: "student:", want: roleList{"student:"}},
		{name: "many roles as bytes", value: []byte("admin:,admin:owner"), want: roleList{"admin:", "admin:owner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rl roleList
			require.NoError(t, rl.Scan(tt.value))
			if diff := cmp.Diff(tt.want, rl); diff != "" {
				t.Errorf("roleList.Scan() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	var rl roleList
	assert.Error(t, rl.Scan(42))

	val, err := roleList{"business:", "admin:"}.Value()
	require.NoError(t, err)
	assert.Equal(t, "business:,admin:", val)
}

func Test_applyOrdering(t *testing.T) {
	db := openDryRun(t)
	allowed := map[string]bool{"name": true, "created_at": true}

	stmt := applyOrdering(db.Model(&userRow{}), []core.DBOrdering{
		{Field: "name", Ascending: true},
		{Field: "password_hash"}, // ignored
		{Field: "created_at"},
	}, allowed).Find(&[]userRow{}).Statement

	assert.Contains(t, stmt.SQL.String(), "ORDER BY name ASC,created_at DESC")
	assert.NotContains(t, stmt.SQL.String(), "password_hash DESC")
}

func Test_likeLower(t *testing.T) {
	assert.Equal(t, "%sousse%", likeLower("SOUSSE"))
}

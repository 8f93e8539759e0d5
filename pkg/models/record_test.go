package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		vector Vector
	}{
		{name: "nil", vector: nil},
		{name: "empty", vector: Vector{}},
		{name: "values", vector: Vector{0, 1.5, -2.25, 3.402823e38}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := tt.vector.Value()
			require.NoError(t, err)

			var got Vector
			if value == nil {
				require.NoError(t, got.Scan(nil))
				assert.Nil(t, got)
				return
			}

			require.NoError(t, got.Scan(value))
			assert.Equal(t, tt.vector, got)
		})
	}
}

func TestVectorScan_Invalid(t *testing.T) {
	var v Vector
	assert.Error(t, v.Scan("not bytes"))
	assert.Error(t, v.Scan([]byte{1, 2, 3}), "truncated blobs must be rejected")
}

func TestRecordDeleted(t *testing.T) {
	record := &Record{}
	assert.False(t, record.Deleted())

	now := time.Now().UTC()
	record.DeletedAt = &now
	assert.True(t, record.Deleted())
}

func TestPermissionIsValid(t *testing.T) {
	assert.True(t, PermissionView.IsValid())
	assert.True(t, PermissionEdit.IsValid())
	assert.False(t, Permission("admin").IsValid())
	assert.False(t, Permission("").IsValid())
}

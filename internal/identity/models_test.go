package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "votechain/pkg/domain-errors"
)

func TestParseVoterID(t *testing.T) {
	tests := []struct {
		in      string
		want    VoterID
		wantErr bool
	}{
		{in: "ABC123456", want: "ABC123456"},
		{in: " abc123456 ", want: "ABC123456"},
		{in: "AB1234567", wantErr: true},
		{in: "ABC12345", wantErr: true},
		{in: "ABCD123456", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVoterID(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRole(t *testing.T) {
	r, err := ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleVoter, r)
	assert.False(t, r.CanControlElection())

	r, err = ParseRole("Auditor")
	require.NoError(t, err)
	assert.True(t, r.CanControlElection())

	r, err = ParseRole("Admin")
	require.NoError(t, err)
	assert.True(t, r.CanControlElection())

	_, err = ParseRole("admin")
	assert.Error(t, err)
}

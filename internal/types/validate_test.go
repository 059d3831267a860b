package types_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/treehouse/internal/types"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "ordinary name", input: "Field Notes"},
		{name: "empty rejected", input: "", wantErr: true},
		{name: "max length accepted", input: strings.Repeat("a", types.MaxNameLength)},
		{name: "over max length rejected", input: strings.Repeat("a", types.MaxNameLength+1), wantErr: true},
		{name: "forbidden slash rejected", input: "a/b", wantErr: true},
		{name: "forbidden colon rejected", input: "a:b", wantErr: true},
		{name: "forbidden pipe rejected", input: "a|b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := types.ValidateName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, types.Is(err, types.KindInvalidArgument))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNextConflictName(t *testing.T) {
	taken := map[string]bool{"Notes": true, "Notes (2)": true}
	assert.Equal(t, "Notes (3)", types.NextConflictName("Notes", taken))
	assert.Equal(t, "Other", types.NextConflictName("Other", taken))
}

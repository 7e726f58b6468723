package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectedID    string
		expectedTitle string
		expectErr     bool
	}{
		{
			name:          "numeric id",
			input:         `{"id": 104, "title": "Game"}`,
			expectedID:    "104",
			expectedTitle: "Game",
		},
		{
			name:          "string id",
			input:         `{"id": "104", "title": "Game"}`,
			expectedID:    "104",
			expectedTitle: "Game",
		},
		{
			name:       "missing title",
			input:      `{"id": 7}`,
			expectedID: "7",
		},
		{
			name:      "missing id",
			input:     `{"title": "No id"}`,
			expectErr: true,
		},
		{
			name:      "empty string id",
			input:     `{"id": "", "title": "Game"}`,
			expectErr: true,
		},
		{
			name:      "boolean id",
			input:     `{"id": true, "title": "Game"}`,
			expectErr: true,
		},
		{
			name:      "not an object",
			input:     `[1, 2, 3]`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Project
			err := json.Unmarshal([]byte(tt.input), &p)

			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedID, p.ID)
			assert.Equal(t, tt.expectedTitle, p.Title)
		})
	}
}

func TestProject_UnmarshalJSON_PreservesExtraFields(t *testing.T) {
	input := `{"id": 42, "title": "Game", "description": "fun", "visibility": "visible"}`

	var p Project
	require.NoError(t, json.Unmarshal([]byte(input), &p))

	assert.Equal(t, "42", p.ID)
	assert.Equal(t, "Game", p.Title)
	assert.Contains(t, p.Extra, "description")
	assert.Contains(t, p.Extra, "visibility")
	assert.NotContains(t, p.Extra, "id")
	assert.NotContains(t, p.Extra, "title")
}

func TestDestinationKind_Valid(t *testing.T) {
	assert.True(t, DestinationKindDirect.Valid())
	assert.True(t, DestinationKindChannel.Valid())
	assert.False(t, DestinationKind("group").Valid())
	assert.False(t, DestinationKind("").Valid())
}

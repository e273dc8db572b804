package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanUTF8(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		cleaned bool
	}{
		{name: "valid text", input: "Société Générale", want: "Société Générale"},
		{name: "nul bytes", input: "BA\x00FOUSSAM", want: "BAFOUSSAM", cleaned: true},
		{name: "invalid sequence", input: "KRIBI\xc3", want: "KRIBI", cleaned: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cleaned := CleanUTF8(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.cleaned, cleaned)
		})
	}
}

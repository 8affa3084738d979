package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeServerName_WithPort(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"somehostname:2345", "somehostname"},
		{"192.168.56.101:2345", "192.168.56.101"},
		{"[2001:db8::8a2e:370:7334]:7171", "2001:db8::8a2e:370:7334"},
		{"[2001:0db8:0000:0000:0000:8a2e:0370:7334]:433", "2001:db8::8a2e:370:7334"},
		{"[::1]:2222", "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeServerName(tt.input))
		})
	}
}

func TestSanitizeServerName_WithoutPort(t *testing.T) {
	tests := []string{
		"somehostname",
		"192.168.56.101",
		"2001:db8::8a2e:370:7334",
		"2001:0db8:0000:0000:0000:8a2e:0370:7334",
		"::1",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, input, SanitizeServerName(input))
		})
	}
}

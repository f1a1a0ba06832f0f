package numbers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCode(t *testing.T) {
	for _, tc := range []struct {
		body string
		want string
	}{
		{"Your WhatsApp code is 482-910", "482910"},
		{"482 910 is your verification code", "482910"},
		{"code: 482910", "482910"},
		{"use 123-456 or 789-000", "123456"},
		{"hello world", "N/A"},
		{"pin 12345", "N/A"},
		{"order #1234567 shipped", "N/A"},
		{"", "N/A"},
	} {
		assert.Equal(t, tc.want, ExtractCode(tc.body), "body %q", tc.body)
	}
}

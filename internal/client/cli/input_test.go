package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	reader := bufio.NewReader(strings.NewReader("  dana@example.com  \n"))

	got, err := GetSimpleText(reader, "Enter email", &out)

	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", got)
	assert.Contains(t, out.String(), "Enter email")
}

func TestGetSimpleText_PartialLineAtEOF(t *testing.T) {
	var out bytes.Buffer
	reader := bufio.NewReader(strings.NewReader("no-newline"))

	got, err := GetSimpleText(reader, "Enter email", &out)

	require.NoError(t, err)
	assert.Equal(t, "no-newline", got)
}

func TestGetPassword_UsesTerminalReader(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(fd int) ([]byte, error) { return []byte("s3cret"), nil }

	var out bytes.Buffer
	got, err := GetPassword(&out)

	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
	assert.Contains(t, out.String(), "Enter password")
}

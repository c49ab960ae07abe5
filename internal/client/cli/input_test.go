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
	t.Run("trims whitespace", func(t *testing.T) {
		var out bytes.Buffer
		r := bufio.NewReader(strings.NewReader("  hello \n"))

		got, err := GetSimpleText(r, "Prompt", &out)
		require.NoError(t, err)
		assert.Equal(t, "hello", got)
		assert.Contains(t, out.String(), "Prompt")
	})

	t.Run("partial line at EOF", func(t *testing.T) {
		var out bytes.Buffer
		r := bufio.NewReader(strings.NewReader("no-newline"))

		got, err := GetSimpleText(r, "Prompt", &out)
		require.NoError(t, err)
		assert.Equal(t, "no-newline", got)
	})

	t.Run("empty input errors", func(t *testing.T) {
		var out bytes.Buffer
		r := bufio.NewReader(strings.NewReader(""))

		_, err := GetSimpleText(r, "Prompt", &out)
		assert.Error(t, err)
	})
}

func TestGetMultiline(t *testing.T) {
	var out bytes.Buffer
	r := bufio.NewReader(strings.NewReader("line one\nline two\n\nignored\n"))

	got, err := GetMultiline(r, "Enter text", &out)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", got)
}

func TestGetPassword(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })

	readPassword = func() ([]byte, error) {
		return []byte("s3cret"), nil
	}

	var out bytes.Buffer
	pw, err := GetPassword("Enter password", &out)
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), pw)
	assert.Contains(t, out.String(), "Enter password")
}

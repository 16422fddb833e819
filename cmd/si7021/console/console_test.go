package console

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestPromptLine(t *testing.T) {
	assert.Equal(t, "apply? [N/y]: ", promptLine("apply?", []string{No, Yes}))
	assert.Equal(t, "pick [A/b/c]: ", promptLine("pick", []string{"a", "b", "c"}))
}

func TestMatch(t *testing.T) {
	constraints := []string{No, Yes}
	assert.Equal(t, Yes, match("Y", constraints))
	assert.Equal(t, Yes, match(" y ", constraints))
	assert.Equal(t, No, match("", constraints))
	assert.Equal(t, No, match("maybe", constraints))
}

func TestOutput(t *testing.T) {
	color.NoColor = true
	prevOut, prevErr := writer, errWriter
	defer SetOutput(prevOut, prevErr)
	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)

	Infof("reading %d", 1)
	Errorf("failed: %s", "nack")
	assert.Equal(t, "... reading 1\n", out.String())
	assert.Equal(t, "ERROR: failed: nack\n", errOut.String())
}

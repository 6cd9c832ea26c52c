package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/cocoa-fruit/relay/version"
)

func runVersion(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"version"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runVersion(t, "-o", "json")
	require.NoError(t, err)

	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Get(), info)

	out, err = runVersion(t, "-o", "short")
	require.NoError(t, err)
	assert.Equal(t, version.Get().String()+"\n", out)

	_, err = runVersion(t, "-o", "yaml")
	assert.EqualError(t, err, `unknown output format "yaml"`)
}

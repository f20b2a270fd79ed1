package tools

import (
	"testing"

	"github.com/ecopia-map/lasviewer/internal/colorramp"
	"github.com/ecopia-map/lasviewer/internal/intensity"
	"github.com/ecopia-map/lasviewer/internal/loader"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsOverrideOnlyWhenGiven(t *testing.T) {
	defaults := loader.DefaultLoaderOptions()
	fs := pflag.NewFlagSet("read", pflag.ContinueOnError)
	readerFlags := DefineReaderFlags(fs, defaults)
	pipelineFlags := DefinePipelineFlags(fs, defaults)
	renderFlags := DefineRenderFlags(fs, defaults)

	require.NoError(t, fs.Parse([]string{"-i", "cloud.las", "--step", "3", "--ramp", "rainbow", "-z", "2.5"}))

	// values coming from a configuration file
	opts := loader.DefaultLoaderOptions()
	opts.CellMaxSize = 7
	opts.Normalization = intensity.MethodPercentile

	readerFlags.Apply(fs, opts)
	pipelineFlags.Apply(fs, opts)
	renderFlags.Apply(fs, opts)

	assert.Equal(t, "cloud.las", opts.Input)
	assert.Equal(t, 3, opts.DecimationStep)
	assert.Equal(t, 2.5, opts.ZOffset)
	assert.Equal(t, colorramp.Rainbow, opts.ColorRamp)
	assert.Equal(t, 7.0, opts.CellMaxSize)
	assert.Equal(t, intensity.MethodPercentile, opts.Normalization)
}

func TestUnknownEnumFlagFailsValidation(t *testing.T) {
	defaults := loader.DefaultLoaderOptions()
	fs := pflag.NewFlagSet("view", pflag.ContinueOnError)
	renderFlags := DefineRenderFlags(fs, defaults)
	require.NoError(t, fs.Parse([]string{"--color-mode", "sepia"}))

	opts := defaults.Copy()
	renderFlags.Apply(fs, opts)
	_, ok := opts.Validate()
	assert.False(t, ok)
}

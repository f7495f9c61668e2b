package cmd

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DemandBridge/environment-transfer-tool/internal/version"
)

func TestCommands(t *testing.T) {
	cmds := commands(hclog.NewNullLogger(), cli.NewMockUi())

	for _, name := range []string{"transfer", "items", "inspect", "history", "version"} {
		t.Run(name, func(t *testing.T) {
			factory, ok := cmds[name]
			require.True(t, ok)

			c, err := factory()
			require.NoError(t, err)
			assert.NotEmpty(t, c.Synopsis())
			assert.NotEmpty(t, c.Help())
		})
	}
	assert.Len(t, cmds, 5)
}

func TestVersionCommand(t *testing.T) {
	ui := cli.NewMockUi()
	cmds := commands(hclog.NewNullLogger(), ui)

	c, err := cmds["version"]()
	require.NoError(t, err)
	assert.Equal(t, 0, c.Run(nil))
	assert.Contains(t, ui.OutputWriter.String(), version.GetVersion())
}

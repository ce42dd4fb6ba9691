package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPServeCmd_Flags(t *testing.T) {
	port := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, port)
	assert.Equal(t, "p", port.Shorthand)
	assert.Equal(t, "0", port.DefValue)
	assert.NotNil(t, mcpServeCmd.Flags().Lookup("read-only"))
}

func TestNewMCPServer(t *testing.T) {
	SetServices(Services{})
	_, err := newMCPServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search service not configured")

	_, cleanup := setupTestServices(t)
	defer cleanup()

	server, err := newMCPServer()
	require.NoError(t, err)
	assert.NotNil(t, server)
}

func TestMCPServe_RequiresServices(t *testing.T) {
	SetServices(Services{})
	_, err := execute(t, "mcp", "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_WiresAllSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"answer", "audit", "serve", "status"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "statuteqa", rootCmd.Use)
	assert.Equal(t, version, rootCmd.Version)
	assert.NotEmpty(t, rootCmd.Short)
	assert.Contains(t, rootCmd.Long, "four backend tiers")
}

func TestAnswerCommand_ArgAndFlagContract(t *testing.T) {
	flag := answerCmd.Flags().Lookup("json")
	require.NotNil(t, flag, "answer should have a --json flag")
	assert.Equal(t, "false", flag.DefValue)

	assert.Error(t, answerCmd.Args(answerCmd, nil), "a question is required")
	assert.Error(t, answerCmd.Args(answerCmd, []string{"one", "two"}), "only one question is accepted")
	assert.NoError(t, answerCmd.Args(answerCmd, []string{"What is the minimum wage in Ontario?"}))
}

func TestAuditCommand_Flags(t *testing.T) {
	limit := auditCmd.Flags().Lookup("limit")
	require.NotNil(t, limit, "audit should have a --limit flag")
	assert.Equal(t, "20", limit.DefValue)

	jsonFlag := auditCmd.Flags().Lookup("json")
	require.NotNil(t, jsonFlag, "audit should have a --json flag")
	assert.Equal(t, "false", jsonFlag.DefValue)
}

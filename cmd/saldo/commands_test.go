package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestBalanceCmd(t *testing.T) {
	out, err := execute(t, "balance",
		"--approved", "10", "--actual", "7", "--days-off", "2", "--sundays", "1",
		"--demand", "1", "--extras", "20", "--rate", "130")
	require.NoError(t, err)

	assert.Contains(t, out, "Worker-day quota:   25")
	assert.Contains(t, out, "Balance:            5")
	assert.Contains(t, out, "Cost:               2600.00")
	assert.Contains(t, out, "Balance value:      -650.00")
}

func TestBalanceCmd_RejectsNegativeInput(t *testing.T) {
	_, err := execute(t, "balance", "--approved=-1")

	assert.Error(t, err)
}

func TestWeekCmd(t *testing.T) {
	out, err := execute(t, "week", "2025-03-12")
	require.NoError(t, err)

	assert.Equal(t, "2025-03-10 .. 2025-03-16 (ISO 2025-W11)\n", out)
}

func TestWeekCmd_BadDate(t *testing.T) {
	_, err := execute(t, "week", "12/03/2025")

	assert.Error(t, err)
}

func TestDecideCmd(t *testing.T) {
	base := []string{"decide",
		"--approved", "10", "--actual", "7", "--days-off", "2", "--sundays", "1",
		"--demand", "1", "--extras", "20", "--rate", "130"}

	tests := []struct {
		name    string
		args    []string
		outcome string
	}{
		{"fits", []string{"--sector", "BAR", "--reason", "FERIAS", "--dates", "2025-03-13,2025-03-14", "--used", "2"}, "auto_approved"},
		{"partial", []string{"--sector", "BAR", "--reason", "FERIAS", "--dates", "2025-03-13,2025-03-14", "--used", "4"}, "insufficient_balance"},
		{"exhausted", []string{"--sector", "BAR", "--reason", "FERIAS", "--dates", "2025-03-13", "--used", "5"}, "balance_exhausted"},
		{"event", []string{"--sector", "BAR", "--reason", "EVENTO", "--dates", "2025-03-13"}, "event_reason"},
		{"exempt", []string{"--sector", "AQUAMANIA", "--reason", "FERIAS", "--dates", "2025-03-13", "--used", "7"}, "auto_approved"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append(append([]string{}, base...), tt.args...)...)
			require.NoError(t, err)
			assert.Contains(t, out, "Outcome:        "+tt.outcome+"\n")
		})
	}
}

func TestDecideCmd_RulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"exempt_sectors": ["BAR"]}`), 0o600))

	out, err := execute(t, "decide", "--rules", path,
		"--sector", "BAR", "--reason", "FERIAS", "--dates", "2025-03-13")
	require.NoError(t, err)

	assert.Contains(t, out, "Remaining:      999 (exempt)")
}

func TestDecideCmd_RequiresDates(t *testing.T) {
	_, err := execute(t, "decide", "--sector", "BAR", "--reason", "FERIAS")

	assert.Error(t, err)
}

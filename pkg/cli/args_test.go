package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestAttachOptionalValues(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	var lines, verbosity int
	var name string
	cmd.Flags().IntVarP(&lines, "logs", "l", 50, "")
	cmd.Flags().Lookup("logs").NoOptDefVal = "50"
	cmd.Flags().CountVarP(&verbosity, "verbose", "v", "")
	cmd.Flags().StringVarP(&name, "app", "a", "", "")

	for _, c := range []struct {
		in, want []string
	}{
		{[]string{"-l3"}, []string{"-l=3"}},
		{[]string{"-l", "3"}, []string{"-l", "3"}},
		{[]string{"-l=3"}, []string{"-l=3"}},
		{[]string{"--logs=3"}, []string{"--logs=3"}},
		{[]string{"-vv", "-l200"}, []string{"-vv", "-l=200"}},
		{[]string{"-a1"}, []string{"-a1"}},
		{[]string{"-lx"}, []string{"-lx"}},
		{[]string{"--", "-l3"}, []string{"--", "-l3"}},
	} {
		assert.Equal(t, c.want, attachOptionalValues(cmd.Flags(), c.in), c.in)
	}
}

func TestSetArgsParsesAttachedCount(t *testing.T) {
	var lines int
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().IntVarP(&lines, "logs", "l", 50, "")
	cmd.Flags().Lookup("logs").NoOptDefVal = "50"

	SetArgs(cmd, []string{"-l3"})
	assert.NoError(t, cmd.Execute())
	assert.Equal(t, 3, lines)
}

func TestTargetsDoesNotShareFlagSlice(t *testing.T) {
	flagged := make([]string, 1, 4)
	flagged[0] = "web1"

	first := Targets(flagged, []string{"web2"})
	second := Targets(flagged, []string{"web3"})

	assert.Equal(t, []string{"web1", "web2"}, first)
	assert.Equal(t, []string{"web1", "web3"}, second)
	assert.Equal(t, []string{"web1"}, flagged)
	assert.Empty(t, Targets(nil, nil))
}

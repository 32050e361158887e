package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// SetArgs gives cmd the arguments to parse, after attaching values
// written straight after the shorthand of an int flag whose value is
// optional. pflag reads "-l3" for such a flag as the shorthands l and
// 3; it understands "-l=3".
func SetArgs(cmd *cobra.Command, args []string) {
	cmd.SetArgs(attachOptionalValues(cmd.Flags(), args))
}

func attachOptionalValues(flags *pflag.FlagSet, args []string) []string {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			return append(out, args[i:]...)
		}
		if len(arg) > 2 && arg[0] == '-' && arg[1] != '-' && isDigits(arg[2:]) {
			if flag := flags.ShorthandLookup(arg[1:2]); flag != nil && flag.NoOptDefVal != "" && flag.Value.Type() == "int" {
				arg = arg[:2] + "=" + arg[2:]
			}
		}
		out = append(out, arg)
	}
	return out
}

func isDigits(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}

// Targets joins the targets given with a flag to those given as
// arguments, in a new slice.
func Targets(flagged, args []string) []string {
	targets := make([]string, 0, len(flagged)+len(args))
	targets = append(targets, flagged...)
	return append(targets, args...)
}

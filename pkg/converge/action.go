package converge

import (
	"fmt"
	"strings"
)

type Action string

const (
	Start   Action = "start"
	Stop    Action = "stop"
	Enable  Action = "enable"
	Disable Action = "disable"
	Deploy  Action = "deploy"
)

// Terminal states reported by ARM for sites, slots and streaming jobs,
// plus the two a health check can be left in, and a finished Kudu
// deployment.
const (
	Running  = "Running"
	Stopped  = "Stopped"
	Enabled  = "Enabled"
	Disabled = "Disabled"
	Complete = "Complete"
)

var targets = map[Action]string{
	Start:   Running,
	Stop:    Stopped,
	Enable:  Enabled,
	Disable: Disabled,
	Deploy:  Complete,
}

// Target is the state a resource settles in once the action is done.
func (a Action) Target() string {
	return targets[a]
}

// ParseAction accepts an action keyword, case-insensitively, provided
// it is one of allowed.
func ParseAction(s string, allowed ...Action) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	var names []string
	for _, ok := range allowed {
		if a == ok {
			return a, nil
		}
		names = append(names, string(ok))
	}
	return "", fmt.Errorf("%q is not a valid action, expected one of %s", s, strings.Join(names, ", "))
}

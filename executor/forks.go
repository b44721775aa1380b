package executor

import (
	"fmt"
	"strings"

	"github.com/daniellehrner/ethexec/vm"
)

// Rules maps a fork name to the interpreter's fork-rule flags. Names
// are matched case-insensitively; Paris is accepted as an alias for
// Merge. Pre-Merge forks are not supported by this tool.
func Rules(fork string) (vm.ForkRules, error) {
	base := vm.ForkRules{
		IsMerge: true, IsLondon: true, IsBerlin: true, IsIstanbul: true,
		IsByzantium: true, IsHomestead: true, IsEIP158: true,
	}
	switch strings.ToLower(fork) {
	case "merge", "paris":
		return base, nil
	case "shanghai":
		base.IsShanghai = true
		return base, nil
	case "cancun":
		base.IsShanghai = true
		base.IsCancun = true
		return base, nil
	case "prague":
		base.IsShanghai = true
		base.IsCancun = true
		base.IsPrague = true
		return base, nil
	default:
		return vm.ForkRules{}, fmt.Errorf("unsupported fork %q", fork)
	}
}

package structure

import (
	"errors"
	"fmt"
)

// ErrStructure is wrapped by every topology and attachment error.
var ErrStructure = errors.New("structure error")

var (
	ErrDuplicateTask      = fmt.Errorf("%w: duplicate task id", ErrStructure)
	ErrTaskNotFound       = fmt.Errorf("%w: task not found", ErrStructure)
	ErrDanglingReference  = fmt.Errorf("%w: dangling task reference", ErrStructure)
	ErrAsymmetricLink     = fmt.Errorf("%w: parent and child links disagree", ErrStructure)
	ErrCycle              = fmt.Errorf("%w: task graph contains a cycle", ErrStructure)
	ErrFirstTaskHasParent = fmt.Errorf("%w: first task cannot have a parent", ErrStructure)
	ErrBranching          = fmt.Errorf("%w: pipeline tasks may have at most one parent and one child", ErrStructure)
	ErrLastTaskHasChild   = fmt.Errorf("%w: last task cannot have a child", ErrStructure)
	ErrOrderMismatch      = fmt.Errorf("%w: task order does not match the chain", ErrStructure)
)

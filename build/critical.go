package build

import (
	"fmt"
	"strings"
)

// Critical should be called if a sanity check has failed, indicating developer
// error. Critical is called with an inconsistency that should not be
// possible, and will never be triggered by user error.
//
// Critical panics in all build modes. There is no way for a production node
// to recover safely once a Critical invariant has failed, so unlike Severe
// the panic is unconditional.
func Critical(v ...interface{}) {
	panic(composeErr(v...))
}

// Severe should be called if a sanity check has failed that is suspicious
// but not immediately fatal to program correctness, for example a
// double-delete of a map entry that should already have been unique. In a
// debug or testing build it panics so the condition surfaces immediately;
// in a standard release build it is swallowed after being logged by the
// caller, since crashing a production wallet over a recoverable
// inconsistency does more harm than good.
func Severe(v ...interface{}) {
	if DEBUG || Release != "standard" {
		panic(composeErr(v...))
	}
}

func composeErr(v ...interface{}) error {
	return fmt.Errorf("%s", fmt.Sprintln(v...))
}

// JoinErrors concatenates the non-nil errors in errs into a single error,
// separated by sep. It returns nil if there are no non-nil errors in errs.
func JoinErrors(errs []error, sep string) error {
	var strs []string
	for _, err := range errs {
		if err != nil {
			strs = append(strs, err.Error())
		}
	}
	if len(strs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(strs, sep))
}

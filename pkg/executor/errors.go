package executor

import "fmt"

// OracleResponseInvalidError reports a decision that failed structural or
// semantic validation. It is always surfaced to the caller so the cycle can
// abort for that symbol rather than trade on a defaulted value.
type OracleResponseInvalidError struct {
	Reason string
	Err    error
}

func (e *OracleResponseInvalidError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oracle response invalid: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("oracle response invalid: %s", e.Reason)
}

func (e *OracleResponseInvalidError) Unwrap() error { return e.Err }

func invalidf(format string, args ...interface{}) error {
	return &OracleResponseInvalidError{Reason: fmt.Sprintf(format, args...)}
}

package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// ExecuteFailure marks a remote admin call that could not be completed, either
// because the failure is not transient or because the retry budget ran out.
// The polling loop drops the offending server from the current cycle instead
// of crashing.
type ExecuteFailure struct {
	Server string
	Op     string
	Err    error
}

func (e *ExecuteFailure) Error() string {
	return fmt.Sprintf("execute %s on %s failed: %v", e.Op, e.Server, e.Err)
}

func (e *ExecuteFailure) Unwrap() error { return e.Err }

func IsExecuteFailure(err error) bool {
	var ef *ExecuteFailure
	return errors.As(err, &ef)
}

// transientKeywords 网络/IO 类可重试错误的关键字列表。
var transientKeywords = []string{
	"connection reset",
	"connection refused",
	"i/o timeout",
	"broken pipe",
	"no reachable servers",
	"EOF",
	"socket was unexpectedly closed",
	"server selection timeout",
	"server selection error",
}

// IsTransientError reports whether err looks like a lost-connection condition
// that a short fixed backoff may heal. Context cancellation never retries;
// command failures retry only for the reconnect-class server codes.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 6, 7, 89: // HostUnreachable, HostNotFound, NetworkTimeout
			return true
		case 91, 189: // ShutdownInProgress, PrimarySteppedDown
			return true
		case 11600, 11602: // InterruptedAtShutdown, InterruptedDueToReplStateChange
			return true
		}
		return false
	}

	errMsg := err.Error()
	for _, kw := range transientKeywords {
		if strings.Contains(errMsg, kw) {
			return true
		}
	}

	return false
}

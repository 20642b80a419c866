package cass

import (
	"time"

	"github.com/gocql/gocql"
	"github.com/uber-go/tally/v4"
)

// operation tags for metrics
const (
	opExec  = "exec"
	opIter  = "iter"
	opBatch = "batch"
)

// errorTag maps gocql errors to tag values, err.Error() contains
// characters metric backends reject.
func errorTag(err error) string {
	switch err.(type) {
	case *gocql.RequestErrReadFailure:
		return "read_failure"
	case *gocql.RequestErrWriteFailure:
		return "write_failure"
	case *gocql.RequestErrAlreadyExists:
		return "already_exists"
	case *gocql.RequestErrReadTimeout:
		return "read_timeout"
	case *gocql.RequestErrWriteTimeout:
		return "write_timeout"
	case *gocql.RequestErrUnavailable:
		return "unavailable"
	case *gocql.RequestErrFunctionFailure:
		return "function_failure"
	case *gocql.RequestErrUnprepared:
		return "unprepared"
	}
	switch err {
	case gocql.ErrNotFound:
		return "not_found"
	case gocql.ErrTimeoutNoResponse:
		return "timeout"
	case gocql.ErrNoConnections:
		return "no_connections"
	}
	return "unknown"
}

func sendLatency(scope tally.Scope, query, operation string, d time.Duration) {
	scope.Tagged(map[string]string{
		"query":     query,
		"operation": operation,
	}).Timer("execute_latency").Record(d)
}

func sendCounters(scope tally.Scope, query, operation string, err error) {
	errMsg := "none"
	if err != nil {
		errMsg = errorTag(err)
	}
	scope.Tagged(map[string]string{
		"query":     query,
		"operation": operation,
		"error":     errMsg,
	}).Counter("execute").Inc(1)
}

package poller

import "fmt"

// Op names the datastore step that failed.
type Op string

const (
	OpConnect Op = "connect"
	OpQuery   Op = "query"
)

// DatastoreError reports that the datastore could not be reached or queried.
// It is fatal to the poll loop; the poller never retries.
type DatastoreError struct {
	Op  Op
	Err error
}

func (e *DatastoreError) Error() string {
	return fmt.Sprintf("datastore %s: %v", e.Op, e.Err)
}

func (e *DatastoreError) Unwrap() error {
	return e.Err
}

package series

import "fmt"

// DataIntegrityError reports malformed input detected while assembling the
// table. It aborts the whole run because it likely affects every node.
type DataIntegrityError struct {
	Time   float64
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: time step %g: %s", e.Time, e.Reason)
}

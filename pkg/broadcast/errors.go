package broadcast

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Publish after the broadcaster has been closed,
// and by Recv once a closed broadcaster has no more buffered values to
// drain (or the subscription itself was closed).
var ErrClosed = errors.New("broadcast: closed")

// LagError reports that a subscription fell behind the ring buffer and
// missed values. The cursor has already been advanced to the oldest value
// still retained; the next Recv resumes delivery from there.
type LagError struct {
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("broadcast: subscription lagged, missed %d values", e.Missed)
}

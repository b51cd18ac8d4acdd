package poker

import "errors"

// Operation errors returned to the initiating caller. Broadcast delivery
// problems are never part of this set; a mutation that succeeded reports
// success regardless of fan-out.
var (
	ErrNotFound          = errors.New("project, session or issue not found")
	ErrForbidden         = errors.New("caller is not allowed to perform this action")
	ErrInvalidVote       = errors.New("vote value is not part of the deck")
	ErrInvalidTransition = errors.New("issue state does not allow this action")
)

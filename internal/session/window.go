package session

import "hoomachat/internal/models"

// DefaultContextWindow bounds how many recent turns are replayed to the
// provider. Older turns stay stored for reporting and export.
const DefaultContextWindow = 10

// Window returns a copy of the last n turns, order preserved. For n <= 0
// the default window applies; if fewer turns exist, all are returned.
func Window(turns []models.Turn, n int) []models.Turn {
	if n <= 0 {
		n = DefaultContextWindow
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	return out
}

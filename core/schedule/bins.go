package schedule

import "time"

// DefaultNumBins is the number of partitions a daily run is fanned out over.
const DefaultNumBins = 24

// BeginningOfDay truncates hours, minutes, seconds and nanoseconds to zero
// on the given datetime. Idempotent.
func BeginningOfDay(dt time.Time) time.Time {
	return time.Date(dt.Year(), dt.Month(), dt.Day(), 0, 0, 0, 0, dt.Location())
}

// BinForUser assigns a user to one of numBins partitions. For a fixed
// numBins the bins cover the user-id space exactly: every user lands in one
// bin and only that bin.
func BinForUser(userID, numBins int) int {
	return userID % numBins
}

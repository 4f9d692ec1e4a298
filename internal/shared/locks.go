package shared

import "fmt"

// PledgeLockKey builds redis keys for the recurring-charge critical section.
func PledgeLockKey(pledgeID int64) string {
	return fmt.Sprintf("donations:pledge:%d:lock", pledgeID)
}

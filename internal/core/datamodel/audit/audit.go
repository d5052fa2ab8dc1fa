package audit

import "time"

// Log is one row of the append-only audit trail.
type Log struct {
	ID         string    `db:"id"`
	OccurredAt time.Time `db:"occurred_at"`
	UserID     string    `db:"user_id"`
	UserRole   string    `db:"user_role"`
	Action     string    `db:"action"`
	Resource   string    `db:"resource"`
	Allowed    bool      `db:"allowed"`
	Context    string    `db:"context"`
	IPAddress  string    `db:"ip_address"`
	UserAgent  string    `db:"user_agent"`
}

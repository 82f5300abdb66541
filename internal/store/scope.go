package store

// Scope restricts resource queries to a single owner, or lifts the
// restriction for admin callers.
type Scope struct {
	OwnerID int64
	All     bool
}

func OwnedBy(userID int64) Scope { return Scope{OwnerID: userID} }

var AnyOwner = Scope{All: true}

// clause returns a WHERE fragment and its arguments for the user_id column.
func (s Scope) clause() (string, []any) {
	if s.All {
		return "1 = 1", nil
	}
	return "user_id = ?", []any{s.OwnerID}
}

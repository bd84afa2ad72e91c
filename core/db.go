package core

// DBOrdering is a single ORDER BY term; repositories render it verbatim, so
// callers must allowlist the field names they accept.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

package internal

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTRead QueryType = iota // Retrieve a record by key.
	QueryTSize                  // Number of records held by the state machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTRead:
		return "Read"
	case QueryTSize:
		return "Size"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or StaleRead
type Query struct {
	Type QueryType // The type of Query to perform.
	Key  string    // The key for the Query (empty for QueryTSize).
}

// QueryResult is the result of a QueryTRead operation.
type QueryResult struct {
	Ok    bool
	Value []byte
}

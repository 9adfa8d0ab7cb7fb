package personfact

// Kind names what a fact asserts about a person.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

// Kinds lists every kind in publication order.
var Kinds = []Kind{KindCreated, KindUpdated, KindDeleted}

func (k Kind) String() string { return string(k) }

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCreated, KindUpdated, KindDeleted:
		return true
	}
	return false
}

// Source tells a command handler where a command came from. Commands that
// arrive through replication are never re-published, which keeps the two
// services from echoing facts back and forth.
type Source string

const (
	SourceAPI         Source = "api"
	SourceReplication Source = "replication"
)

// Message header keys set by the publisher.
const (
	HeaderEventID  = "event_id"
	HeaderKind     = "kind"
	HeaderOrigin   = "origin"
)

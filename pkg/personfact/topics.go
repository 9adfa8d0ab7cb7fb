package personfact

import "fmt"

// Topics maps each kind to the topic a single producer publishes it on. Kinds
// get separate topics so backpressure and retry policy stay independent.
type Topics struct {
	Created string
	Updated string
	Deleted string
}

// DefaultTopics returns create-person / update-person / delete-person with an
// optional producer prefix, e.g. "address." for facts raised by the Address
// service.
func DefaultTopics(prefix string) Topics {
	return Topics{
		Created: prefix + "create-person",
		Updated: prefix + "update-person",
		Deleted: prefix + "delete-person",
	}
}

// For returns the topic that carries kind.
func (t Topics) For(kind Kind) (string, error) {
	switch kind {
	case KindCreated:
		return t.Created, nil
	case KindUpdated:
		return t.Updated, nil
	case KindDeleted:
		return t.Deleted, nil
	}
	return "", fmt.Errorf("no topic for fact kind %q", kind)
}

// KindOf resolves the kind carried by topic.
func (t Topics) KindOf(topic string) (Kind, bool) {
	switch topic {
	case t.Created:
		return KindCreated, true
	case t.Updated:
		return KindUpdated, true
	case t.Deleted:
		return KindDeleted, true
	}
	return "", false
}

// All lists the three topics.
func (t Topics) All() []string {
	return []string{t.Created, t.Updated, t.Deleted}
}

// Package personfact is the shared replication contract between the Person and
// Address services.
//
// A Fact asserts that a person was created, updated or deleted at a point in
// time. Facts travel on one topic per kind, are delivered at least once and in
// no guaranteed order, so every store that applies them goes through Decide:
// a pure function that turns (current projection, fact) into the next
// projection plus an Outcome. Re-applying a fact, or applying an older one
// after a newer one, is a normal return value and never an error.
package personfact

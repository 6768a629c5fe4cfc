/*
Package storage persists runner records in BoltDB.

The orchestrator writes through to the journal on every provision and
deprovision. On startup the journal is compared against the containers the
daemon actually has, so runners orphaned by a crash are swept instead of
leaking.
*/
package storage

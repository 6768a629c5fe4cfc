/*
Package docker is the container driver: a narrow abstraction over the local
docker daemon covering exactly what the orchestrator needs.

Capabilities: image probe, create (with the session label, the agent PORT
environment variable, and one of three network configurations), start,
inspect, idempotent stop and force-remove, and a label-filtered list used by
startup reconciliation. "Not found" from the daemon is mapped to success for
stop/remove and to ErrNotFound for inspect, so callers never see raw daemon
error strings.
*/
package docker

/*
Package orchestrator implements the control plane: provisioning runner
containers for sessions, refreshing their activity on heartbeats, tearing
them down on deprovision, and reaping the idle ones.

The orchestrator composes the session registry (source of truth for runner
existence), the docker driver, and the BoltDB journal. Provisioning is
idempotent per session; failures after container creation roll the container
back and leave no registry record. Deprovision removes the registry entry
before touching the daemon, preferring a zombie container over a stuck
session slot. The reaper sweeps every 30 seconds and never surfaces errors.
*/
package orchestrator

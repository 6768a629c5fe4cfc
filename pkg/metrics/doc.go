/*
Package metrics exposes Prometheus collectors and process health state for
the orchestrator and the runner agent.

Collectors are package-level and registered in init, so any package can
record without plumbing a registry handle around. The health checker keeps a
component map (docker, api, reaper, ...) behind /healthz and /readyz;
readiness only considers the components named via SetCriticalComponents.
*/
package metrics

/*
Package registry implements the session-to-runner mapping that backs the
orchestrator's provision, heartbeat, deprovision, and reaper paths.

The registry is the single source of truth for runner existence. It supports
two modes: per-session (one record per session id, the default) and reuse
(one shared singleton record returned for every provision). All operations
are serialized by an internal mutex; callers receive copies, never aliases
into the map.
*/
package registry

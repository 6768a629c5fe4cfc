/*
Package config resolves process configuration for the orchestrator and the
runner agent.

Resolution order for the orchestrator: environment variables (processed with
go-envconfig), then an optional YAML file overlay, then command-line flag
overrides applied by cmd/orchestrator. The runner agent is configured from
the environment only, since it runs inside the container the orchestrator
created.
*/
package config

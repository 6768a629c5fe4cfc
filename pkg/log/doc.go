/*
Package log provides structured logging for the runner orchestrator and
agent using zerolog.

The package wraps zerolog with a global logger initialized once at process
start via Init, plus helpers that attach the fields shared across the
codebase (component, session_id, container_id, snippet_id). Console output
is the default for interactive use; JSON output is intended for production.

Usage:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("reaper")
	logger.Info().Str("session_id", id).Msg("runner reaped")
*/
package log

/*
Package api exposes the orchestrator's control-plane HTTP surface.

Routes:

	GET  /                             liveness banner
	GET  /healthz, /readyz, /metrics   operational endpoints
	POST /api/runner/provision         create or return the session's runner
	POST /api/runner/heartbeat         refresh last-activity
	POST /api/runner/deprovision       stop and remove the runner
	GET  /api/runner/list              active runner records
	GET  /api/runner/download/...      reserved (501)

Errors use a fixed kind vocabulary (SESSION_ID_REQUIRED, RUNNER_NOT_FOUND,
DOCKER_IMAGE_NOT_FOUND, SERVER_ERROR); details are attached outside
production. Provision is rate limited per client IP.
*/
package api

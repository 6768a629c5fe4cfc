/*
Package types defines the core data structures shared by the orchestrator
and the runner agent.

This package contains the control-plane runner record, the network mode
enum, and the wire payloads exchanged on the runner's event channel. It has
no dependencies on the rest of the module so every other package can import
it freely.

# Core Types

Control plane:
  - RunnerRecord: one live runner container keyed by session id
  - NetworkMode: default (published port), custom network, or none

Data plane (event channel payloads):
  - RunRequest / RunOutput / RunErrorOutput / RunError
  - ListDirectoryRequest / DirectoryListing / DirEntry
  - DownloadFileRequest / FileContent

Event names are declared as constants next to the payloads so the agent and
any Go client agree on the channel vocabulary.
*/
package types

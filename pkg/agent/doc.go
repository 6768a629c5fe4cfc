// Package agent implements the in-container runner service. It exposes a
// single websocket endpoint over which clients submit snippet runs, browse
// the container filesystem, and download files. Each inbound event is
// handled on its own goroutine; outbound events funnel through a single
// writer per connection.
package agent

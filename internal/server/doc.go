// Package server implements the MCP (Model Context Protocol) server exposing
// note head detection as tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs go to stderr so that they never mix with responses.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - omr_page_info: Page dimensions, format and ink ratio
//   - omr_detect_heads: Heads and chords of a page from its layout
//   - omr_template: Render a head template at a point size
//   - omr_annotate: Overlay of detected heads and chords
//   - omr_head_crop: Page crop around one detected head
//
// # State
//
// Pages and their binarized rasters are cached by path. The last detection
// of each page is kept so that omr_annotate and omr_head_crop can refer to
// its heads, and the seed calibration of the last detection is reused by the
// next one.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
package server

// Package btcamcp exposes the btca command-line program as MCP tools.
package btcamcp

// Version is the btcamcp release version.
const Version = "0.1.0"

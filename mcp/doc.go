// Package mcp resolves remote tool references against Model Context Protocol
// servers. Prompts reference remote tools as "mcp://server/tool" (or
// "mcp://server/*" for the whole catalog); the resolver lazily connects to
// each named server at most once, caches its tool catalog, and hands out
// resolved tools whose invocations call through the live session.
//
// Server configurations are validated strictly: any key outside the
// recognized set fails fast, naming the offending key, before a connection
// is ever attempted.
package mcp

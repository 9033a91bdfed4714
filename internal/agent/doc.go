// Package agent implements the Agent Engine (C6, §4.6): the streaming
// tool-use loop that turns one user prompt into a completed turn —
// trimming history, streaming from an llm.Client, dispatching tool
// calls through the Permission Manager and MCP Client Manager, and
// persisting every step to the Session Store.
//
// The loop is grounded on the teacher's internal/session package
// (loop.go's runLoop, stream.go's processStream, tools.go's
// executeToolCalls/checkToolPermission/checkDoomLoop, compact.go's
// compactMessages), generalized from the teacher's Eino/message-parts
// model to the normalized types.Message/types.StreamEvent model built
// for this core. Retry backoff on tool dispatch reuses the teacher's
// cenkalti/backoff/v4 configuration (internal/session/loop.go's
// newRetryBackoff), applied to §4.6.3 step 4's network-level retry
// instead of the teacher's whole-turn retry.
package agent

// Package runner drives adapted invocations to completion. For text prompts
// it owns the tool round-trip loop: stream the model's events, execute any
// requested tool calls through the resolved tool set, replay the outcomes as
// messages, and invoke again until the model finishes for a reason other
// than pending tool calls or the call budget runs out.
package runner

package adapter

import (
	"encoding/json"

	"github.com/promptwire/promptwire/core"
)

// buildTelemetry assembles the tracing metadata block of a resolved
// invocation. Prompt-level metadata merges under caller-level metadata, so a
// caller key wins on conflict. The block always carries the prompt's name
// and a serialized copy of the caller-visible props.
func buildTelemetry(promptName string, promptMeta map[string]any, opts *core.AdaptOptions) *core.TelemetryOptions {
	if opts.Telemetry == nil || !opts.Telemetry.Enabled {
		return nil
	}

	meta := make(map[string]any, len(promptMeta)+len(opts.Telemetry.Metadata)+2)
	for k, v := range promptMeta {
		meta[k] = v
	}
	for k, v := range opts.Telemetry.Metadata {
		meta[k] = v
	}
	meta["prompt_name"] = promptName
	meta["props"] = serializeProps(opts.Props)

	return &core.TelemetryOptions{
		Enabled:    true,
		FunctionID: opts.Telemetry.FunctionID,
		Metadata:   meta,
	}
}

func serializeProps(props map[string]any) string {
	if props == nil {
		return "{}"
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "{}"
	}
	return string(data)
}

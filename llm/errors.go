package llm

import (
	"fmt"
	"strings"
)

// ConfigError means the gateway cannot be called with the given settings.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "LLM not configured, missing " + strings.Join(e.Missing, ", ")
}

// UpstreamError covers transport failures, HTTP error statuses and error
// payloads returned with a success status.
type UpstreamError struct {
	Status  int // 0 when no response was received
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("LLM request failed (%d): %s", e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("LLM request failed (%d)", e.Status)
	case e.Message != "":
		return "LLM request failed: " + e.Message
	case e.Err != nil:
		return "LLM request failed: " + e.Err.Error()
	}
	return "LLM request failed"
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// SchemaError means the provider answered but without message content.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "unexpected LLM response: " + e.Reason
}

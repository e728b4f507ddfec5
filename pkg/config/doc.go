// Package config resolves the orchestrator's configuration surface:
// built-in defaults, merged with an optional YAML file, then
// overridden field-by-field by the process environment.
package config

// Package file keeps user-editable state under the config directory
// (~/.vetrina by default): config.toml for settings and prompts/*.txt for
// the assistant's system prompts.
package file

// Package appid holds the application identity used for help text, config
// discovery and environment prefixes.
package appid

import "strings"

// Identity describes the application to the rest of the binary.
type Identity struct {
	Vendor      string
	BinaryName  string
	ConfigName  string
	EnvPrefix   string
	Description string
}

var current = Identity{
	Vendor:      "financemate",
	BinaryName:  "financemate",
	ConfigName:  "financemate",
	EnvPrefix:   "FINANCEMATE_",
	Description: "Receipt and voice expense extraction service",
}

// Get returns the application identity.
func Get() *Identity {
	id := current
	return &id
}

// Prefix returns the environment prefix with a trailing underscore.
func (i *Identity) Prefix() string {
	if i == nil || strings.TrimSpace(i.EnvPrefix) == "" {
		return "FINANCEMATE_"
	}
	if strings.HasSuffix(i.EnvPrefix, "_") {
		return i.EnvPrefix
	}
	return i.EnvPrefix + "_"
}

// TelemetryNamespace returns the metric namespace derived from the binary name.
func (i *Identity) TelemetryNamespace() string {
	if i == nil || i.BinaryName == "" {
		return "financemate"
	}
	return strings.ReplaceAll(strings.ToLower(i.BinaryName), "-", "_")
}

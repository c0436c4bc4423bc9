// Package provider defines the base interface and registry for pluggable
// backends (transcription, LLM). Backends register a Factory under a name;
// components create instances from configuration by name.
package provider

// Package vaultmodel holds the wire types shared with the Config Vault and
// Schema Vault services: what a pipeline Config looks like, and what a
// JSON Schema document looks like once it comes back over the wire.
package vaultmodel

// JobDependency names a (service, source) pair another Config's job
// depends on having already run.
type JobDependency struct {
	Service string `json:"service"`
	Source  string `json:"source"`
}

// JobParameters carries the job-handler selector for a Config. ParserModule
// used to name a Python package to import dynamically; here it names the
// key under which a handler was registered at compile time (see
// internal/jobhandler).
type JobParameters struct {
	ParserModule string `json:"parser_module"`
}

// Config describes one pipeline: which provider/service/source it serves,
// which job handler processes it, and what it depends on.
type Config struct {
	ConfigID        string          `json:"_id"`
	Active          bool            `json:"active"`
	Service         string          `json:"service"`
	Source          string          `json:"source"`
	Provider        string          `json:"provider"`
	DependsOn       []JobDependency `json:"depends_on"`
	JobParameters   JobParameters   `json:"job_parameters"`
	ConfigVersionID string          `json:"config_version_id"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

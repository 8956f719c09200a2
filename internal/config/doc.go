// Package config loads pool configuration from YAML and the environment
// and normalizes connection strings into lib/pq DSNs.
package config

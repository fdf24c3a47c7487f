// Package config handles configuration loading for courier.
//
// # Overview
//
// Configuration is loaded from a single YAML file with environment
// variable expansion. The package provides defaults matching the ones
// named in the external interface specification.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  secret: "${COURIER_AUTH_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Durations
//
// Duration-shaped fields are written as plain integer seconds, not as Go
// duration strings:
//
//	server:
//	  heartbeat_interval_seconds: 30
//	  shutdown_deadline_seconds: 30
//
// Callers convert them to time.Duration (ServerConfig provides accessors
// such as ChannelPruneInterval for some of them).
//
// # Usage
//
//	cfg, err := config.Load("/etc/courier/courier.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

// Package config handles configuration loading for the prospector.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	directory:
//	  api_key: "${APOLLO_API_KEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/prospector/prospector.db"
//	  cache_expiry: "168h"   # contact cache TTL, Go duration syntax
//
// Contact directory:
//
//	directory:
//	  api_key: "${APOLLO_API_KEY}"
//	  sequence_id: "seq-123"
//	  titles: ["Head of Localization", "VP Engineering"]  # optional override
//	  per_page: 10
//
// Draft generation:
//
//	ai:
//	  provider: "anthropic"   # or "gemini"
//	  anthropic_api_key: "${ANTHROPIC_API_KEY}"
//	  gemini_api_key: "${GEMINI_API_KEY}"
//
// Slack review channel:
//
//	slack:
//	  bot_token: "${SLACK_BOT_TOKEN}"
//	  signing_secret: "${SLACK_SIGNING_SECRET}"
//	  channel_id: "C0123456789"
//
// Operator API authentication:
//
//	auth:
//	  jwt_secret: "${PROSPECTOR_JWT_SECRET}"   # empty disables auth
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() fails on a missing listen address or database path and on an
// unknown AI provider. Missing credentials are deliberately not fatal:
// MissingCredentials reports them so startup can warn while the service
// still boots for local testing.
package config

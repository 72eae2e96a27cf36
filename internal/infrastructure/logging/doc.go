// Package logging builds the service's log/slog logger from the logging
// section of config.yaml.
//
// Every entry carries service and version attributes; Component adds a
// component attribute per subsystem (mqtt, host, creator, session, api).
// Attributes named after credentials (api_key, authorization, password,
// secret, ticket, token) are written as [REDACTED] whatever their value.
//
//	logging:
//	  level: info     # debug, info, warn, error
//	  format: json    # json, text
//	  output: stdout  # stdout, stderr
//
// Automation descriptions are user content and are logged at debug only.
package logging

// Package config loads runtime configuration for the NextShape client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Optional .env file (-e or -env-file, else ./.env when present) and
//     NEXTSHAPE_* environment variables.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string   API base URL
//	-t int      request timeout (seconds)
//	-m string   auth mode: cookie or bearer
//	-d string   local SQLite database path
//	-l string   log level
//	-p int      session probe interval (seconds, 0 disables)
//
// # JSON schema
//
// Durations use timex.Duration, so they can be strings like "20s" or integer
// nanoseconds:
//
//	{
//	  "api_base_url": "http://127.0.0.1:8000/api/",
//	  "request_timeout": "20s",
//	  "auth_mode": "cookie",
//	  "database_path": "nextshape.db",
//	  "log_level": "info",
//	  "log_format": "text",
//	  "session_probe_interval": "0s"
//	}
//
// Environment variables: NEXTSHAPE_API_BASE_URL, NEXTSHAPE_REQUEST_TIMEOUT,
// NEXTSHAPE_AUTH_MODE, NEXTSHAPE_DATABASE_PATH, NEXTSHAPE_LOG_LEVEL,
// NEXTSHAPE_LOG_FORMAT, NEXTSHAPE_SESSION_PROBE_INTERVAL.
package config

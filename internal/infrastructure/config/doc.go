// Package config loads config.yaml for the automation creator.
//
// Load starts from defaultConfig, decodes the YAML over it, applies
// AUTOCREATOR_* environment overrides and finally runs Validate. Secrets
// (AUTOCREATOR_LLM_API_KEY, AUTOCREATOR_JWT_SECRET, broker and InfluxDB
// credentials) are expected from the environment or a .env file loaded by
// the CLI, not from the YAML.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	attempts := cfg.Submission.MaxFetchAttempts
package config

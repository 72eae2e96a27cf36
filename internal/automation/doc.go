// Package automation is the automation creator backend.
//
// It turns a natural-language description into a host automation:
//
//	description ─▶ Generator (LLM) ─▶ Normalize ─▶ ResultStore (latest)
//	                                            ├─▶ Repository (history)
//	                                            └─▶ automations.yaml
//
// Service exposes this as the create_automation and get_automation_yaml
// host services and reports the result through persistent notifications.
//
// Normalize repairs the structural problems language models commonly make:
// missing id, singular trigger/condition/action keys, triggers without ids,
// and markdown code fences around the YAML.
package automation

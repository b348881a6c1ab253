// Package config loads the checklist client settings.
//
// Settings come from three layers, later ones winning:
//
//  1. Built-in defaults (see Default)
//  2. ~/.config/checklist/config.toml, or an explicit path
//  3. CHECKLIST_* environment variables
//
// A missing config file is not an error. Durations use Go syntax ("24h",
// "90s"), and paths starting with ~ are expanded against the home directory.
//
// Example config.toml:
//
//	api_url = "https://checklist.example.com"
//	state_backend = "sqlite"
//	max_state_age = "12h"
//	log_level = "debug"
package config

// Package config handles loading and validating the SwitchBot bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The cloud token and broker credentials should be set via environment
//     variables (SWITCHBOT_OPENAPI_TOKEN, SWITCHBOT_MQTT_PASSWORD)
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Options.RefreshRate)
package config

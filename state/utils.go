package state

type DeprecatedOption struct {
	Name        string
	Description string
}

// GetDeprecatedConfigOptions reports options that are no longer read and
// moves their values to the options that replaced them.
func GetDeprecatedConfigOptions(cfg *Config) []DeprecatedOption {
	returnValue := []DeprecatedOption{}

	if cfg.Telegram.Proxy != "" {
		returnValue = append(returnValue, DeprecatedOption{
			Name:        "[telegram.proxy]",
			Description: "It has been replaced with the top level [proxy]",
		})

		if cfg.Proxy == "" {
			cfg.Proxy = cfg.Telegram.Proxy
		}
		cfg.Telegram.Proxy = ""
	}

	if len(returnValue) > 0 {
		return returnValue
	} else {
		return nil
	}
}

package llm

// EnvAdapterFactory probes the environment for one provider's
// credentials. It returns (nil, false, nil) when the provider is not
// configured, and (nil, true, err) when it is configured but broken.
type EnvAdapterFactory func() (ProviderAdapter, bool, error)

var envFactories []EnvAdapterFactory

// RegisterEnvAdapterFactory is called from provider package init funcs so
// importing a provider package is all it takes to make it available.
func RegisterEnvAdapterFactory(f EnvAdapterFactory) {
	if f != nil {
		envFactories = append(envFactories, f)
	}
}

// NewClientFromEnv builds a client with every provider whose credentials
// are present. No configured provider at all is a fatal configuration
// error: the run must never start without a reachable generation
// capability.
func NewClientFromEnv() (*Client, error) {
	c := NewClient()
	for _, f := range envFactories {
		adapter, configured, err := f()
		if err != nil {
			return nil, err
		}
		if !configured || adapter == nil {
			continue
		}
		c.Register(adapter)
	}
	if len(c.providers) == 0 {
		return nil, &ConfigurationError{Message: "no generation provider configured; set ANTHROPIC_API_KEY or OPENAI_API_KEY"}
	}
	return c, nil
}

package env

import (
	"fmt"
)

// Environment is the set of variables a suite run resolves placeholders against.
type Environment struct {
	Name      string
	Variables map[string]any
}

// LoadEnvironment merges, from lowest to highest precedence: the named
// environment from the config file, the suite's own variables and the
// optional .env file.
func LoadEnvironment(envName string, configEnvs map[string]map[string]any, suiteVars map[string]string, dotEnvPath string) (*Environment, error) {
	env := &Environment{
		Name:      envName,
		Variables: make(map[string]any),
	}

	if vars, ok := configEnvs[envName]; ok {
		for k, v := range vars {
			env.Variables[k] = v
		}
	}

	for k, v := range suiteVars {
		env.Variables[k] = v
	}

	if dotEnvPath != "" {
		vars, err := LoadDotEnv(dotEnvPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", dotEnvPath, err)
		}
		for k, v := range vars {
			env.Variables[k] = v
		}
	}

	return env, nil
}

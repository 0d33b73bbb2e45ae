package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	domainconfig "github.com/felixgeelhaar/steploop/domain/config"
)

// envPattern matches ${VAR}, ${VAR:-default}, ${VAR:?message} and $VAR.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// envExpander expands environment variables in configuration strings.
type envExpander struct {
	// strict fails if a referenced variable is not set.
	strict bool
	// missing tracks missing environment variables.
	missing []string
}

// Expand expands environment variables in the input string in a single pass,
// so expanded values are never expanded again.
// Supported patterns:
//   - ${VAR} - expands to the value of VAR
//   - ${VAR:-default} - expands to VAR or "default" if not set
//   - ${VAR:?error message} - fails if VAR is not set
//   - $VAR - simple expansion
func (e *envExpander) Expand(input string) (string, error) {
	e.missing = nil

	result := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envPattern.FindStringSubmatch(match)
		name, modifier, arg := groups[1], groups[2], groups[3]
		if name == "" {
			name = groups[4]
		}

		value, exists := os.LookupEnv(name)
		switch modifier {
		case ":-":
			if !exists || value == "" {
				return arg
			}
		case ":?":
			if !exists || value == "" {
				e.missing = append(e.missing, fmt.Sprintf("%s: %s", name, arg))
				return match
			}
		default:
			if !exists {
				if e.strict {
					e.missing = append(e.missing, name)
				}
				return ""
			}
		}
		return value
	})

	if len(e.missing) > 0 {
		return "", fmt.Errorf("%w: %s", domainconfig.ErrMissingEnvVar, strings.Join(e.missing, ", "))
	}

	return result, nil
}

// ExpandEnv is a convenience function that expands environment variables.
func ExpandEnv(input string) string {
	e := &envExpander{strict: false}
	result, _ := e.Expand(input)
	return result
}

// ExpandEnvStrict expands environment variables and returns an error for missing vars.
func ExpandEnvStrict(input string) (string, error) {
	e := &envExpander{strict: true}
	return e.Expand(input)
}

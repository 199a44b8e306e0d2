package helper

import (
	"fmt"
	"os"
	"strings"

	"github.com/dentametrics/pmsync/constants"
)

// ReadValueFromEnvWithDefault will read the value of name from the environment.
// If it's not set then it will apply the supplied defaultValue.
func ReadValueFromEnvWithDefault(name string, defaultValue string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultValue
}

// EnvVarName converts a dotted or dashed config key into the environment
// variable name used to override it, e.g. "source.password" becomes
// "PMSYNC_SOURCE_PASSWORD".
func EnvVarName(key string) string {
	n := strings.TrimSpace(strings.ToUpper(key))
	n = strings.NewReplacer(".", "_", "-", "_").Replace(n)
	return fmt.Sprintf("%v_%v", constants.EnvVarPrefix, n)
}

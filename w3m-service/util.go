package service

import "strings"

// PrefixEnvVar returns the environment variable names a flag is read from.
// The first name is the prefixed one; any extra names are unprefixed aliases.
func PrefixEnvVar(prefix, suffix string, aliases ...string) []string {
	return append([]string{strings.ToUpper(prefix) + "_" + suffix}, aliases...)
}

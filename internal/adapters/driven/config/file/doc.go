// Package file persists application configuration as a TOML file in
// the tabletalk config directory. Missing files yield the default
// configuration; unknown keys are rejected so typos surface early.
package file

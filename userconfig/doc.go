package userconfig

// userconfig reads the YAML config file, layers environment variables on top
// of it and validates the result. Each section's own validation lives next to
// the code that uses it, e.g., email.UserConfig.

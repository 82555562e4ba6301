package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/praetorian-inc/sharecrawl/pkg/config"
)

// overrides are command-line values applied over the configuration file.
type overrides struct {
	dls         bool
	dlsSet      bool
	askPassword bool
}

// loadConfig loads and validates the configuration file, applying flag
// overrides.
func loadConfig(o overrides) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if o.dlsSet {
		cfg.DLS = o.dls
	}
	if o.askPassword {
		password, err := promptPassword("Password: ")
		if err != nil {
			return nil, err
		}
		if cfg.Source == config.SourceSharePoint {
			cfg.SharePoint.Password = password
		} else {
			cfg.NetworkDrive.Password = password
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--ask-password requires a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

type InitCfg struct{}

type WipeBDB struct{}

// Config is the relay's command line and stored configuration. After
// flag parsing a config.json in the profile directory, if present,
// overrides the parsed values; initcfg writes the parsed values out
// instead.
type Config struct {
	InitCfg *InitCfg `arg:"subcommand:initcfg" json:"-" help:"write the configuration to the profile and exit"`
	Wipe    *WipeBDB `arg:"subcommand:wipebdb" json:"-" help:"empty the badger event store and exit"`

	Listen      string `arg:"-l,--listen" default:"0.0.0.0:3334" json:"listen" help:"network address to listen on"`
	Profile     string `arg:"-p,--profile" default:"citrine" json:"-" help:"profile directory name under ~/"`
	Name        string `arg:"-n,--name" default:"citrine relay" json:"name" help:"relay name shown in NIP-11"`
	Description string `arg:"--description" json:"description" help:"relay description shown in NIP-11"`
	Pubkey      string `arg:"--pubkey" json:"pubkey" help:"public key of the relay operator"`
	Contact     string `arg:"-c,--contact" json:"contact" help:"contact address of the relay operator"`
	Icon        string `arg:"-i,--icon" default:"https://i.nostr.build/68vg.png" json:"icon" help:"icon to show on relay information pages"`

	EventStore string `arg:"-e,--eventstore" default:"badger" json:"eventstore" help:"event store to use [badger,memory]"`

	AllowedKinds         []int    `arg:"--allowed-kinds,separate" json:"allowed_kinds,omitempty" help:"restrict admission to these event kinds"`
	AllowedPubkeys       []string `arg:"--allowed-pubkeys,separate" json:"allowed_pubkeys,omitempty" help:"restrict admission to these authors"`
	AllowedTaggedPubkeys []string `arg:"--allowed-tagged,separate" json:"allowed_tagged_pubkeys,omitempty" help:"also admit events p-tagging these pubkeys"`

	MaxLimit         int `arg:"--max-limit" default:"10000" json:"max_limit" help:"cap on the number of events returned per filter"`
	MaxSubscriptions int `arg:"--max-subscriptions" default:"50" json:"max_subscriptions" help:"cap on concurrently tracked subscriptions"`

	LogLevel string `arg:"--loglevel" default:"info" json:"-" help:"log level [trace,debug,info,warn,error]"`
}

func (c *Config) Version() string { return fmt.Sprintf("citrine relay %s", Version) }

// ProfileDir resolves the profile directory under the user's home,
// creating it if needed.
func (c *Config) ProfileDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate home directory: %w", err)
	}
	dir := filepath.Join(home, c.Profile)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create profile directory %s: %w", dir, err)
	}
	return dir, nil
}

func (c *Config) Save(path string) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal configuration: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("cannot write configuration to %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("configuration saved")
	return nil
}

// Load fills c from a saved config.json if one exists. A missing file is
// not an error; first runs have nothing to load.
func (c *Config) Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cannot read configuration from %s: %w", path, err)
	}
	if err := json.Unmarshal(b, c); err != nil {
		return fmt.Errorf("cannot parse configuration at %s: %w", path, err)
	}
	return nil
}

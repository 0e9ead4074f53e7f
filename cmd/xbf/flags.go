package main

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Common flags
const (
	flagConfig   flagName = "config"
	flagDataDir  flagName = "data-dir"
	flagLogLevel flagName = "log-level"
	flagStore    flagName = "store"

	flagOut     flagName = "out"
	flagOutFile flagName = "outfile"
	flagIn      flagName = "in"
	flagField   flagName = "field"
	flagEquals  flagName = "equals"
	flagFields  flagName = "fields"
	flagSet     flagName = "set"
	flagTo      flagName = "to"
)

func addGlobalFlags(f *pflag.FlagSet) {
	f.String(string(flagConfig), "", "config file (default $XBF_CONFIG)")
	f.String(string(flagDataDir), "", "directory holding tables and the WAL")
	f.String(string(flagLogLevel), "", "log level: debug, info, warn or error")
	f.String(string(flagStore), "", "table engine: file or memory")
}

func addOutFlags(f *pflag.FlagSet) {
	f.String(string(flagOut), "", "output format: yaml, json or cbor (default from config)")
}

func addWhereFlags(f *pflag.FlagSet) {
	f.String(string(flagField), "", "field to match")
	f.String(string(flagEquals), "", "value the field must equal, written as YAML")
}

type flagName string

// ensureAdded detects if a flag is being used without it first being
// added to the flagSet.
func (f flagName) ensureAdded(cmd *Command) {
	if cmd.Flags().Lookup(string(f)) == nil {
		panic(fmt.Sprintf("Cmd %q uses flag %q without adding it", cmd.Name(), f))
	}
}

func (f flagName) Bool(cmd *Command) bool {
	f.ensureAdded(cmd)
	v, _ := cmd.Flags().GetBool(string(f))
	return v
}

func (f flagName) String(cmd *Command) string {
	f.ensureAdded(cmd)
	v, _ := cmd.Flags().GetString(string(f))
	return v
}

func (f flagName) StringSlice(cmd *Command) []string {
	f.ensureAdded(cmd)
	v, _ := cmd.Flags().GetStringSlice(string(f))
	return v
}

func (f flagName) Changed(cmd *Command) bool {
	f.ensureAdded(cmd)
	return cmd.Flags().Changed(string(f))
}

package main

import (
	"flag"
	"fmt"
	"os"
)

type AppFlags struct {
	ConfigFile  string
	SourcesFile string
	Mode        string
}

func ParseFlags() AppFlags {
	configFile := flag.String("config", "", "Path to the global YAML/JSON configuration file. If not set, searches default locations.")
	configFileAlias := flag.String("c", "", "Alias for -config")

	sourcesFile := flag.String("sources", "", "Path to the intake sources YAML file (overrides config file if set)")
	sourcesFileAlias := flag.String("s", "", "Alias for -sources")

	modeFlag := flag.String("mode", "", "Mode to run the service: onetime or automated")
	modeFlagAlias := flag.String("m", "", "Alias for -mode")

	flag.Parse()

	flags := AppFlags{}

	if *configFile != "" {
		flags.ConfigFile = *configFile
	} else if *configFileAlias != "" {
		flags.ConfigFile = *configFileAlias
	}

	if *sourcesFile != "" {
		flags.SourcesFile = *sourcesFile
	} else if *sourcesFileAlias != "" {
		flags.SourcesFile = *sourcesFileAlias
	}

	if *modeFlag != "" {
		flags.Mode = *modeFlag
	} else if *modeFlagAlias != "" {
		flags.Mode = *modeFlagAlias
	}

	if flags.Mode != "onetime" && flags.Mode != "automated" {
		fmt.Fprintln(os.Stderr, "[FATAL] -mode argument is required (onetime or automated)")
		os.Exit(1)
	}

	return flags
}

// Command ledgerctl обслуживает базу леджера: миграции, пересчет кэшей
// копилок, сверка балансов счетов и выпуск токенов для API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"

	"piggybank/config"
	"piggybank/utils"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(subcommands.ExitFailure))
	}
	if err := utils.SetupLogger(cfg.Log.Dir, cfg.Log.Level); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(subcommands.ExitFailure))
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands(cfg, os.Stdout) {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/kzaag/datastar/cass"
	"github.com/kzaag/datastar/target"
)

func main() {
	args, err := target.NewArgs(os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("invalid arguments")
	}
	if args.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	c, err := target.NewConfigFromPath(args.ConfigPath, args)
	if err != nil {
		log.WithError(err).Fatal("cannot load config")
	}

	switch c.Driver {
	case "", "cassandra":
		ctx := cass.TargetCtxNew()
		ctx.Color = terminal.IsTerminal(int(os.Stdout.Fd()))
		err = ctx.ExecConfig(context.Background(), c, args)
	default:
		err = fmt.Errorf("unknown driver: %s", c.Driver)
	}

	if err != nil {
		log.WithError(err).Error("execution failed")
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mealkeeper/go-grocery-client/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("grocerctl failed")
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = fmt.Errorf("panic recovered")
		}
	}()

	c := config.New()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if c.GetEnv() == "DEV" {
		displayAppname(c.GetAppName())
	}

	return newRootCommand(c, logger).Execute()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

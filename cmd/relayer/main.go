package main

import (
	"github.com/rs/zerolog/log"

	"github.com/knotx/relayer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Relayer exited with error")
	}
}

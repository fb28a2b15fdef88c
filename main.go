package main

import (
	"os"

	"github.com/katatrina/gundam-live/api"
	"github.com/katatrina/gundam-live/internal/backend"
	"github.com/katatrina/gundam-live/internal/util"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

//	@title			Gundam Live API
//	@version		1.0.0
//	@description	Real-time auction, auto-bid, dispute and notification streams for the Gundam Platform

//	@host		localhost:8090
//	@BasePath	/v1
//	@schemes	http https

//	@securityDefinitions.apikey	accessToken
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and JWT token.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configurations
	config, err := util.LoadConfig("./app.env")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config file 😣")
	}

	log.Info().Msg("configurations loaded successfully ✅")

	backendClient := backend.NewClient(&config)
	defer backendClient.Close()
	log.Info().Str("base_url", config.APIBaseURL).Msg("backend client created ✅")

	runHTTPServer(&config, backendClient)
}

func runHTTPServer(config *util.Config, backendClient *backend.Client) {
	server, err := api.NewServer(config, backendClient, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create HTTP server 😣")
	}

	log.Info().
		Str("address", config.HTTPServerAddress).
		Str("transport", config.RealtimeTransport).
		Msg("HTTP server started ✅")

	err = server.Start(config.HTTPServerAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start HTTP server 😣")
	}
}

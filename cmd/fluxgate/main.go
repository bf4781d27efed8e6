package main

import (
	"os"

	_ "embed"

	app "github.com/fluxgate/fluxgate/internal/app"
	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
)

//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	fxApp, err := app.New(envFilePath, embeddedConfig)
	if err != nil {
		logger.Fatalf("Failed to assemble application: %v", err)
	}
	fxApp.Run()
	if fxApp.Err() != nil {
		logger.Fatalf("Application run failed: %v", fxApp.Err())
	}
}

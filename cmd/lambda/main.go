package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"tcc-slm-backend/internal/app"
	"tcc-slm-backend/internal/config"
	"tcc-slm-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// initialized once per execution environment and reused across invocations
	application, err := app.New(context.Background(), cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize application: %v", err)
	}

	lambda.StartWithOptions(application.Handler.HandleLambda,
		lambda.WithEnableSIGTERM(func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Runtime.StopTimeout)
			defer cancel()
			application.Close(ctx)
		}),
	)
}

package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"webshop/internal/api"
	"webshop/internal/app"
	"webshop/internal/config"
)

func main() {
	config.LoadEnv()
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer a.Close()
	lambda.Start(api.NewLambdaHandler(a.Handler).Handle)
}

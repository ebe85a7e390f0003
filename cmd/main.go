package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"vision-concierge/handler"
	"vision-concierge/internal/integrations/anthropic"
	"vision-concierge/internal/integrations/line"
	"vision-concierge/internal/integrations/paramstore"
	"vision-concierge/internal/repository"
	"vision-concierge/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	tableName := mustEnv("TABLE_NAME")
	paramPrefix := mustEnv("PARAM_PREFIX")
	maxInputLen := envInt("MAX_INPUT_LENGTH", 500)
	remoteTimeout := envInt("REMOTE_TIMEOUT_SECONDS", 10)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	repo, err := repository.New(awsdynamodb.NewFromConfig(cfg), tableName)
	if err != nil {
		slog.Error("failed to create repository", "err", err)
		os.Exit(1)
	}
	generator, err := anthropic.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create generation client", "err", err)
		os.Exit(1)
	}
	notifier, err := line.NewNotifier(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create notifier", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	converseService, err := usecase.NewConverseService(repo, repo,
		usecase.WithGenerator(generator),
		usecase.WithNotifier(notifier),
		usecase.WithMaxInputLength(maxInputLen),
		usecase.WithRemoteTimeout(time.Duration(remoteTimeout)*time.Second),
	)
	if err != nil {
		slog.Error("failed to create converse service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(converseService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	// flush in-flight notifications before the runtime shuts the process down
	lambda.StartWithOptions(h.Handle, lambda.WithEnableSIGTERM(converseService.Wait))
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

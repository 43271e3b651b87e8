package app

import (
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/career-fairy/backend/internal/config"
	"github.com/zhouzirui/career-fairy/backend/pkg/logger"
)

// Bootstrap loads envFiles (".env" when none are given) into the process
// environment, reads the configuration and builds the logger. A missing env
// file only produces a warning. The logger is installed as zap's global.
func Bootstrap(envFiles ...string) (*config.Config, *zap.Logger, error) {
	envErr := godotenv.Load(envFiles...)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(cfg.Debug)
	zap.ReplaceGlobals(log)

	if envErr != nil {
		log.Debug("env file not loaded, using process environment only", zap.Error(envErr))
	}
	return cfg, log, nil
}

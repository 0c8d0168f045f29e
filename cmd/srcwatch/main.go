package main

import (
	"errors"
	"os"

	cmd "github.com/MrSnakeDoc/srcwatch/internal"
	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/middleware"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, middleware.ErrLogged) {
			logger.LogError("%v", err)
		}
		os.Exit(1)
	}
}

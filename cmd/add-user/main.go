// Command add-user creates a directory user from the command line. It is how
// the first SUPER_ADMIN is created on a fresh database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/briceletutour/AlcomV4-sub001/internal/application/service"
	"github.com/briceletutour/AlcomV4-sub001/internal/config"
	"github.com/briceletutour/AlcomV4-sub001/internal/container"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/briceletutour/AlcomV4-sub001/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
		email      = flag.String("email", "", "email address (required)")
		name       = flag.String("name", "", "full name (required)")
		role       = flag.String("role", "", "role, e.g. SUPER_ADMIN, CFO, STATION_MANAGER (required)")
		managerID  = flag.Int64("manager", 0, "line manager user id")
	)
	flag.Parse()

	if *email == "" || *name == "" || *role == "" {
		flag.Usage()
		os.Exit(2)
	}

	input := service.CreateUserInput{
		Email:    *email,
		FullName: *name,
		Role:     entity.Role(strings.ToUpper(*role)),
	}
	if *managerID > 0 {
		input.LineManagerID = managerID
	}

	if err := run(*configPath, input); err != nil {
		fmt.Fprintf(os.Stderr, "add-user: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, input service.CreateUserInput) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{Level: "warn", OutputPath: "stderr", Format: "console"})
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := container.ProvideDatabase(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Conn.Close()

	repos := container.ProvideRepositories(db.TxManager, logger)
	users := service.NewUserService(repos.Users, container.ProvideDispatcher(logger), container.NewLoggerAdapter(logger))

	user, err := users.Create(context.Background(), input)
	if err != nil {
		return err
	}

	logger.Info("User created", zap.Int64("user_id", user.ID))
	fmt.Printf("created user %d: %s <%s> %s\n", user.ID, user.FullName, user.Email, user.Role)
	return nil
}

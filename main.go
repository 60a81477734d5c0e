package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rodeway/board/config"
	"github.com/rodeway/board/utils"
)

func main() {
	// A .env next to the binary is optional; real environment variables win.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "board",
		Short:         "Community board server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				config.DefaultPath = path
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return utils.InitLogger(cfg)
		},
		RunE: runServe,
	}
	root.PersistentFlags().String("config", config.DefaultPath, "path to the optional JSON config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and bootstrap the admin account",
		RunE:  runMigrate,
	})

	if err := root.Execute(); err != nil {
		utils.Sugar.Errorf("board: %v", err)
		_ = utils.Logger.Sync()
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Get()
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.close()

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	return utils.GraceServer(":"+cfg.AppPort, a.router())
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), config.Get())
	if err != nil {
		return err
	}
	defer a.close()
	utils.Sugar.Info("database schema is up to date")
	return nil
}

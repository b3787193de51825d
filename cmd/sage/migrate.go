package main

import (
	"github.com/spf13/cobra"

	"github.com/studysage/sage/config"
	"github.com/studysage/sage/internal/server"
)

func migrateCMD() *cobra.Command {
	var dir string
	var direction string
	var steps int
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The dsn can come from config or DATABASE_URL; an unloadable
			// config only matters when it was named explicitly.
			var dsn string
			if cfg, err := config.Load(cfgPath); err == nil {
				dsn = cfg.Storage.Postgres.DSN()
			} else if cfgPath != "" {
				return err
			}
			return server.Migrate(dir, dsn, direction, steps)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "file://migrations", "migrations source (file://migrations)")
	cmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/healthgraph/radar/internal/config"
	"github.com/healthgraph/radar/internal/domain/identity"
	"github.com/healthgraph/radar/internal/platform/auth"
	"github.com/healthgraph/radar/internal/platform/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "radar-server",
		Short:        "HealthGraph Radar data quality API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	a, err := loadApp(context.Background())
	if err != nil {
		return err
	}
	defer a.close()

	e := a.router()

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + a.cfg.Port
		a.logger.Info().Str("addr", addr).Str("env", a.cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		a.logger.Error().Err(err).Msg("server error")
		return err
	}

	a.logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	a.logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.MigrationsDir
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, dir))
}

func seedCmd() *cobra.Command {
	var opts seedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with synthetic demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := newSeeder(a).run(ctx, opts)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d system(s), %d patient(s), %d record(s), %d issue(s) (%d resolved), %d observation(s).\n",
				res.Systems, res.Patients, res.Records, res.Issues, res.Resolved, res.Observations)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Patients, "patients", 50, "Number of patients to create")
	cmd.Flags().IntVar(&opts.MaxRecords, "records", 8, "Maximum medical records per patient")
	cmd.Flags().IntVar(&opts.Issues, "issues", 120, "Number of data quality issues to create")
	cmd.Flags().IntVar(&opts.Observations, "observations", 40, "Number of metric observations to record")
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var (
		req  identity.RegisterRequest
		dept string
		role string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if dept != "" {
				req.Department = &dept
			}
			u, err := a.identity.CreateUser(ctx, req, role)
			if err != nil {
				return err
			}
			fmt.Printf("Created user %s (id %d, role %s).\n", u.Username, u.ID, u.Role)
			return nil
		},
	}
	createCmd.Flags().StringVar(&req.Username, "username", "", "Login name")
	createCmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	createCmd.Flags().StringVar(&req.Password, "password", "", "Initial password")
	createCmd.Flags().StringVar(&req.FirstName, "first-name", "", "First name")
	createCmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name")
	createCmd.Flags().StringVar(&dept, "department", "", "Department")
	createCmd.Flags().StringVar(&role, "role", auth.RoleUser, "Role: user or admin")
	_ = createCmd.MarkFlagRequired("username")
	_ = createCmd.MarkFlagRequired("password")

	cmd.AddCommand(createCmd)
	return cmd
}

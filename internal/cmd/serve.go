package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dativo-io/claimpilot/internal/scheduler"
	"github.com/dativo-io/claimpilot/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API with scheduled automation sweeps",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides serve_addr config)")
	rootCmd.AddCommand(serveCmd)
}

// sweepConfig is one entry in the sweeps section of claimpilot.config.yaml:
//
//	sweeps:
//	  - org_id: org-123
//	    cron: "0 7 * * *"
//	    description: morning sweep
type sweepConfig struct {
	OrgID       string `mapstructure:"org_id"`
	Cron        string `mapstructure:"cron"`
	Description string `mapstructure:"description"`
}

func loadSweeps() ([]scheduler.Sweep, error) {
	var entries []sweepConfig
	if err := viper.UnmarshalKey("sweeps", &entries); err != nil {
		return nil, fmt.Errorf("parsing sweeps config: %w", err)
	}
	sweeps := make([]scheduler.Sweep, 0, len(entries))
	for _, e := range entries {
		if e.OrgID == "" || e.Cron == "" {
			return nil, fmt.Errorf("sweeps config: entry missing org_id or cron")
		}
		sweeps = append(sweeps, scheduler.Sweep{
			OrgID:       e.OrgID,
			Cron:        e.Cron,
			Description: e.Description,
		})
	}
	return sweeps, nil
}

// batchAdapter narrows the engine to the scheduler's interface, discarding
// per-claim results; the sweep's audit trail lives in the stores.
type batchAdapter struct {
	app *app
}

func (b *batchAdapter) RunBatch(ctx context.Context, orgID string) error {
	results, err := b.app.engine.RunBatch(ctx, orgID)
	if err != nil {
		return err
	}
	for claimID, res := range results {
		if !res.Success {
			log.Warn().
				Str("org_id", orgID).
				Str("claim_id", claimID).
				Strs("errors", res.Errors).
				Msg("sweep_claim_failed")
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sweeps, err := loadSweeps()
	if err != nil {
		return err
	}
	sched := scheduler.New(&batchAdapter{app: a})
	if err := sched.RegisterSweeps(sweeps); err != nil {
		return fmt.Errorf("registering sweeps: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	srv := server.NewServer(a.engine, a.invokes,
		server.WithRegistry(a.registry),
		server.WithCache(a.cache),
	)

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.ServeAddr
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Int("sweeps", sched.Entries()).Msg("server_started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

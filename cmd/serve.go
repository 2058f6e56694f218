package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentic-research/sitegraph/internal/engine"
	"github.com/agentic-research/sitegraph/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// drainTimeout bounds how long a replaced engine waits for its in-flight
// renders before the wait is abandoned and the close happens in the
// background.
const drainTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve rendered JSON-LD over HTTP",
	Long: `Serve GET /jsonld, /types and /rules.

SIGHUP reloads the schema settings file and swaps in a fresh engine without
dropping in-flight requests.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cfg, log, true)
		if err != nil {
			return err
		}
		swap := engine.NewHotSwap(e)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			if err := swap.Close(ctx); err != nil {
				log.Warn("engine close", zap.Error(err))
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-hup:
					reload(swap)
				}
			}
		}()

		srv := server.New(swap,
			server.WithLogger(log),
			server.WithRenderTimeout(cfg.Server.RenderTimeout))
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	},
}

// reload rebuilds the engine from the current configuration. A failed reload
// keeps the running engine.
func reload(swap *engine.HotSwap) {
	next, err := openEngine(cfg, log, true)
	if err != nil {
		log.Error("reload failed, keeping current engine", zap.Error(err))
		return
	}
	log.Info("engine reloaded", zap.String("schemas", cfg.Schemas))

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := swap.Replace(ctx, next); err != nil {
		log.Warn("previous engine still draining", zap.Error(err))
	}
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", "127.0.0.1:8080", "Listen address")
	f.Duration("render-timeout", 0, "Per-request render deadline (default from config: 2s)")
	bindFlag(vp, "server.addr", f.Lookup("addr"))
	bindFlag(vp, "server.render_timeout", f.Lookup("render-timeout"))
	rootCmd.AddCommand(serveCmd)
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/arca/pkg/api"
	"github.com/yeisme/arca/pkg/app"
	"github.com/yeisme/arca/pkg/internal/jobs"
	nlog "github.com/yeisme/arca/pkg/log"
	"github.com/yeisme/arca/pkg/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run scheduled jobs and the ops HTTP endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := currentConfig()

		return withApp(cmd, cfg, func(a *app.App) error {
			l := nlog.Logger()
			gin.DefaultWriter = nlog.NewGinWriter(l, zerolog.InfoLevel)
			gin.DefaultErrorWriter = nlog.NewGinWriter(l, zerolog.ErrorLevel)

			sched, err := scheduler.NewScheduler(*l)
			if err != nil {
				return err
			}

			if err := jobs.RegisterCronJobs(cmd.Context(), sched, a, cfg.Jobs); err != nil {
				_ = sched.Stop()
				return err
			}

			sched.Start()

			g, ctx := errgroup.WithContext(cmd.Context())

			if cfg.Index.Queue.Enabled && cfg.Index.Queue.Consume {
				done, err := a.StartIndexConsumer(ctx)
				if err != nil {
					_ = sched.Stop()
					return err
				}

				g.Go(func() error {
					<-done
					return nil
				})
			}

			ops := api.New(ctx, cfg, a, sched, *l)
			srv := &http.Server{
				Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
				Handler:           ops.Engine(),
				ReadHeaderTimeout: cfg.Server.GetTimeoutDuration(),
			}

			g.Go(func() error {
				l.Info().Str("addr", srv.Addr).Msg("ops server listening")

				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}

				return nil
			})

			g.Go(func() error {
				<-ctx.Done()

				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.GetTimeoutDuration())
				defer cancel()

				l.Info().Msg("shutting down")

				err := srv.Shutdown(shutdownCtx)
				ops.Wait()

				return errors.Join(err, sched.Stop())
			})

			return g.Wait()
		})
	},
}

// registerServeCommand 注册常驻服务命令.
func registerServeCommand() {
	rootCmd.AddCommand(serveCmd)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/srand/jolt/datasync/pkg/communication"
	"github.com/srand/jolt/datasync/pkg/config"
	"github.com/srand/jolt/datasync/pkg/log"
	"github.com/srand/jolt/datasync/pkg/monitor"
	"github.com/srand/jolt/datasync/pkg/taskgroup"
	"github.com/srand/jolt/datasync/pkg/utils"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a task group",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindRunFlags(cmd)

		if err := readConfig(true); err != nil {
			return err
		}

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		cfg.Log()

		fs, err := cfg.Storage.CreateFs()
		if err != nil {
			return err
		}

		runID := uuid.NewString()
		opts := []taskgroup.Option{taskgroup.WithFs(fs), taskgroup.WithRunID(runID)}

		if cfg.Monitor.Address != "" {
			remote, err := monitor.NewGrpcMonitor(cfg.Monitor.Address, &cfg.Monitor.GRPCOptions, monitor.Identity{
				RunID:       runID,
				JobID:       cfg.JobID,
				TaskGroupID: cfg.TaskGroupID,
			})
			if err != nil {
				return err
			}
			defer remote.Close()
			opts = append(opts, taskgroup.WithMonitor(remote))
		}

		container := taskgroup.NewContainer(cfg, opts...)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)

		// Subscribe before the group starts so that no report is missed.
		if progress, _ := cmd.Flags().GetBool("progress"); progress {
			consumer := container.Communications().Subscribe()
			g.Go(func() error {
				printProgress(consumer.Chan)
				return nil
			})
		}

		serverCtx, stopServer := context.WithCancel(gctx)
		defer stopServer()

		if address := statusAddress(); address != "" {
			socket, err := utils.Listen(address, 8080)
			if err != nil {
				return err
			}
			log.Info("Listening on http", socket.Addr())

			r := echo.New()
			r.HideBanner = true
			r.Use(utils.HttpLogger(log.WithPrefix("http")))
			taskgroup.NewHttpHandler(container, r)

			server := &http.Server{Handler: r}
			g.Go(func() error {
				<-serverCtx.Done()
				return server.Shutdown(context.Background())
			})
			g.Go(func() error {
				if err := server.Serve(socket); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		}

		g.Go(func() error {
			defer stopServer()
			return container.Start(gctx)
		})

		if err := g.Wait(); err != nil {
			return fmt.Errorf("task group %d failed: %w", cfg.TaskGroupID, err)
		}
		return nil
	},
}

// Bound when the command runs, the watchdog command binds the same key to
// its own flag.
func bindRunFlags(cmd *cobra.Command) {
	viper.BindPFlag("listen_http", cmd.Flags().Lookup("listen-http"))
}

// Address of the /metrics and /status server, empty when disabled.
func statusAddress() string {
	return viper.GetString("listen_http")
}

func printProgress(reports <-chan *communication.Report) {
	for report := range reports {
		fmt.Printf("[%3.0f%%] %d/%d tasks, %d records, %s, %s\n",
			report.Percentage,
			report.FinishedTasks,
			report.TotalTasks,
			report.Communication.TotalReadRecords(),
			utils.HumanByteSize(report.Communication.TotalReadBytes()),
			utils.HumanByteRate(report.ByteSpeed),
		)
	}
}

func init() {
	runCmd.Flags().StringP("listen-http", "l", "", "Address to serve /metrics and /status on, e.g. tcp://:8080")
	runCmd.Flags().Bool("progress", true, "Print progress reports")

	rootCmd.AddCommand(runCmd)
}

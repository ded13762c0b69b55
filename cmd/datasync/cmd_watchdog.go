package main

import (
	"cmp"
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/srand/jolt/datasync/pkg/log"
	"github.com/srand/jolt/datasync/pkg/monitor"
	"github.com/srand/jolt/datasync/pkg/utils"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

type WatchdogConfig struct {
	utils.GRPCOptions `mapstructure:"grpc"`

	ListenGrpc []string `mapstructure:"listen_grpc"`
	ListenHttp []string `mapstructure:"listen_http"`
}

func (c *WatchdogConfig) Log() {
	log.Info("Watchdog configuration:")
	log.Infof("  gRPC listen addresses: %v", c.ListenGrpc)
	log.Infof("  HTTP listen addresses: %v", c.ListenHttp)
	c.GRPCOptions.Log()
}

var watchdogCmd = &cobra.Command{
	Use:   "watchdog",
	Short: "Collect task reports from remote task groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		viper.BindPFlag("listen_grpc", cmd.Flags().Lookup("listen-grpc"))
		viper.BindPFlag("listen_http", cmd.Flags().Lookup("listen-http"))

		if err := readConfig(false); err != nil {
			return err
		}

		cfg := &WatchdogConfig{}
		if err := utils.UnmarshalConfig(viper.GetViper(), cfg); err != nil {
			return err
		}
		cfg.Log()

		service := monitor.NewWatchdogService()
		g := errgroup.Group{}

		for _, address := range cfg.ListenGrpc {
			socket, err := utils.Listen(address, 9090)
			if err != nil {
				return err
			}
			log.Info("Listening on grpc", socket.Addr())

			server := grpc.NewServer(cfg.GRPCOptions.ToServerOptions()...)
			monitor.RegisterWatchdogServer(server, service)
			g.Go(func() error {
				return server.Serve(socket)
			})
		}

		for _, address := range cfg.ListenHttp {
			socket, err := utils.Listen(address, 8080)
			if err != nil {
				return err
			}
			log.Info("Listening on http", socket.Addr())

			r := echo.New()
			r.HideBanner = true
			r.Use(utils.HttpLogger(log.WithPrefix("http")))
			r.GET("/tasks", func(c echo.Context) error {
				tasks := service.Tasks()
				slices.SortFunc(tasks, func(a, b monitor.TaskStatus) int {
					return cmp.Or(
						strings.Compare(a.Node, b.Node),
						strings.Compare(a.RunID, b.RunID),
						cmp.Compare(a.TaskGroupID, b.TaskGroupID),
						cmp.Compare(a.TaskID, b.TaskID),
					)
				})
				return c.JSON(http.StatusOK, tasks)
			})

			g.Go(func() error {
				return http.Serve(socket, r)
			})
		}

		return g.Wait()
	},
}

func init() {
	watchdogCmd.Flags().StringSliceP("listen-grpc", "g", []string{"tcp://:9090"}, "Addresses to listen on for GRPC connections")
	watchdogCmd.Flags().StringSliceP("listen-http", "l", []string{}, "Addresses to serve the task list on")


	rootCmd.AddCommand(watchdogCmd)
}

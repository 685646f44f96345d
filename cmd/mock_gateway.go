package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"reportharness/internal/config"
	"reportharness/internal/gateway"
	"reportharness/internal/mockgateway"
	"reportharness/pkg/logging"

	"github.com/spf13/cobra"
)

type mockGatewayOptions struct {
	listen         string
	api            string
	pollsUntilDone int
	finalStatus    string
}

func newMockGatewayCmd() *cobra.Command {
	opts := &mockGatewayOptions{}
	cmd := &cobra.Command{
		Use:   "mock-gateway",
		Short: "Serve an in-memory report gateway for local development",
		Long: `mock-gateway serves the gateway HTTP contract from memory. Uploads are
accepted, submitted jobs report ABORT for the configured number of status
polls and then finish with the final status for every task.

Examples:
  reportharness mock-gateway --listen :8099
  reportharness mock-gateway --api legacy --final-status WARNING`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMockGateway(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.listen, "listen", ":8099", "Address to listen on")
	cmd.Flags().StringVar(&opts.api, "api", config.GatewayAPIV1, "Gateway API to serve: v1 or legacy")
	cmd.Flags().IntVar(&opts.pollsUntilDone, "polls-until-done", 1, "Status polls answered with ABORT before a job finishes")
	cmd.Flags().StringVar(&opts.finalStatus, "final-status", string(gateway.StatusSuccess), "Status reported for finished tasks")
	return cmd
}

func (o *mockGatewayOptions) serverOptions() (mockgateway.Options, error) {
	if o.api != config.GatewayAPIV1 && o.api != config.GatewayAPILegacy {
		return mockgateway.Options{}, fmt.Errorf("unsupported gateway api %q", o.api)
	}
	var status gateway.Status
	if err := status.UnmarshalJSON([]byte(strconv.Quote(strings.ToUpper(o.finalStatus)))); err != nil {
		return mockgateway.Options{}, err
	}
	return mockgateway.Options{
		API:            o.api,
		PollsUntilDone: o.pollsUntilDone,
		FinalStatus:    status,
	}, nil
}

func runMockGateway(ctx context.Context, opts *mockGatewayOptions) error {
	serverOpts, err := opts.serverOptions()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.For("MockGateway")
	srv := &http.Server{
		Addr:              opts.listen,
		Handler:           mockgateway.New(serverOpts, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Serving %s gateway API on %s", serverOpts.API, opts.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

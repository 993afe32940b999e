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

	"github.com/spf13/cobra"

	"storefront/backendstub"
	"storefront/output"
)

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Run a development backend",
	Long: `Run an in-memory shop backend that speaks the same REST API as the real
one. OTP codes are returned in the send-otp response and logged.

Examples:
  storefront stub                                   # Listen on stub.addr
  storefront stub --user 09123456789:secret         # Seed a user with a password
  storefront stub --price 12=250000                 # Set the price of product 12`,
	RunE: runStub,
}

func init() {
	rootCmd.AddCommand(stubCmd)

	stubCmd.Flags().StringSlice("user", nil, "seed a user as phone:password (repeatable)")
	stubCmd.Flags().StringSlice("price", nil, "set a product price as id=amount (repeatable)")
}

func runStub(cmd *cobra.Command, args []string) error {
	users, _ := cmd.Flags().GetStringSlice("user")
	prices, _ := cmd.Flags().GetStringSlice("price")

	stub, err := backendstub.New(backendstub.Options{
		AccessTTL:  cfg.Stub.AccessTTL,
		RefreshTTL: cfg.Stub.RefreshTTL,
		Keys:       cfg.Stub.Keys,
		Logger:     logger.With("component", "stub"),
	})
	if err != nil {
		return err
	}

	if err := seedStub(stub, users, prices); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Stub.Addr,
		Handler:           stub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stub backend listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func seedStub(stub *backendstub.Server, users, prices []string) error {
	for _, u := range users {
		phone, password, ok := strings.Cut(u, ":")
		if !ok || phone == "" {
			return usageError("invalid --user %q (want phone:password)", u)
		}
		stub.AddUser(phone, password)
	}

	for _, p := range prices {
		id, amount, ok := strings.Cut(p, "=")
		productID, idErr := strconv.Atoi(id)
		price, priceErr := strconv.ParseInt(amount, 10, 64)
		if !ok || idErr != nil || priceErr != nil || price < 0 {
			return usageError("invalid --price %q (want id=amount)", p)
		}
		stub.SetPrice(productID, price)
	}
	return nil
}

func usageError(format string, args ...any) error {
	return &output.CLIError{
		Summary:  fmt.Sprintf(format, args...),
		ExitCode: output.ExitUsageError,
	}
}

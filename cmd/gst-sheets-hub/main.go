// Command gst-sheets-hub serves company GST workbooks over HTTP and rolls
// monthly sheets forward from the command line.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.alis.build/alog"

	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/config"
	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/directory"
	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/server"
	"github.com/abdulkadhersoofi-dot/gst-sheets-hub/internal/sheet"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg, envErr := config.FromEnv()

	root := &cobra.Command{
		Use:           "gst-sheets-hub",
		Short:         "Shared GST workbooks backed by spreadsheets",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			level, err := config.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			alog.SetLevel(level)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.MasterConfigID, "master-config", cfg.MasterConfigID, "spreadsheet id of the master company config")
	pf.StringVar(&cfg.Store, "store", cfg.Store, "spreadsheet backend: google or xlsx")
	pf.StringVar(&cfg.WorkbookDir, "workbook-dir", cfg.WorkbookDir, "directory of .xlsx workbooks for the xlsx store")
	pf.StringVar(&cfg.ServiceAccountFile, "service-account", cfg.ServiceAccountFile, "service account key file for the google store")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warning or error")

	root.AddCommand(newServeCmd(&cfg), newCloneCmd(&cfg), newHashPasswordCmd())
	return root
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "http service address")
	cmd.Flags().DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "how long the company list is cached")
	cmd.Flags().StringVar(&cfg.UsersFile, "users", cfg.UsersFile, "JSON file of editor bcrypt hashes; writes are open when unset")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := cfg.NewStore(ctx)
	if err != nil {
		return err
	}
	var editors *server.Editors
	if cfg.UsersFile != "" {
		if editors, err = server.LoadEditors(cfg.UsersFile); err != nil {
			return err
		}
	}

	hub := server.NewHub()
	go hub.Run(ctx)

	dir := directory.New(st, cfg.MasterConfigID, directory.WithTTL(cfg.CacheTTL))
	mgr := sheet.NewManager(dir, st, hub)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(mgr, hub, editors),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		alog.Infof(ctx, "serve: listening on %s", cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	alog.Infof(context.Background(), "serve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newCloneCmd(cfg *config.Config) *cobra.Command {
	var company, source, newSheet string
	cmd := &cobra.Command{
		Use:   "clone",
		Short: "Copy a sheet to a new tab and blank its numeric inputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := cfg.NewStore(ctx)
			if err != nil {
				return err
			}
			mgr := sheet.NewManager(directory.New(st, cfg.MasterConfigID), st, nil)
			info, err := mgr.Clone(ctx, sheet.CloneRequest{Company: company, Source: source, NewSheet: newSheet})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %q (sheet id %d) in company %s\n", info.Title, info.ID, company)
			return nil
		},
	}
	cmd.Flags().StringVar(&company, "company", "", "company id from the master config")
	cmd.Flags().StringVar(&source, "source", "", "template sheet to copy")
	cmd.Flags().StringVar(&newSheet, "new", "", "title of the new sheet")
	cmd.MarkFlagRequired("company")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("new")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash of a password for the users file",
		Long:  "Print the bcrypt hash of a password for the users file. The password is read from stdin when not given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			hash, err := server.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

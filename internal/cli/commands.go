package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BartekS5/paysync/internal/catalog"
	"github.com/BartekS5/paysync/internal/etl"
	"github.com/BartekS5/paysync/internal/server"
	"github.com/BartekS5/paysync/pkg/logger"
	"github.com/spf13/cobra"
)

// NewResourcesCmd lists the resources that can be ingested. It needs no
// credentials.
func NewResourcesCmd(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List the resources available for ingestion",
		RunE: func(c *cobra.Command, args []string) error {
			cat, err := catalog.Load(global.SchemaDir)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTABLE\tKIND\tIDENTITY KEY\tINCREMENT")
			for _, name := range cat.Names() {
				res, _ := cat.Lookup(name)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					res.Name, res.Table, res.Kind, strings.Join(res.Keys.Primary, ","), res.Keys.Increment)
			}
			return w.Flush()
		},
	}
}

type ScheduleOptions struct {
	Cron   string
	Tables []string
}

func NewScheduleCmd(global *GlobalOptions) *cobra.Command {
	opts := &ScheduleOptions{}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run auto-incremental ingestion on a cron schedule until interrupted",
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newApp(c.Context(), global, false, opts.Tables)
			if err != nil {
				return err
			}
			defer a.Close()

			tables := opts.Tables
			if len(tables) == 0 {
				tables = a.catalog.Names()
			}
			sched := etl.NewScheduler(a.catalog, a.pipeline)
			if err := sched.Add(opts.Cron, tables...); err != nil {
				return err
			}
			sched.Start()
			logger.Infof("Scheduler started for %s", strings.Join(tables, ", "))

			<-c.Context().Done()
			logger.Info("Shutting down scheduler...")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return sched.Stop(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.Cron, "cron", "0 * * * *", "Cron schedule (five fields)")
	cmd.Flags().StringSliceVarP(&opts.Tables, "table", "t", nil, "Resource to schedule (repeatable, default all)")

	return cmd
}

type ServeOptions struct {
	Addr string
}

func NewServeCmd(global *GlobalOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run requests over HTTP",
		RunE: func(c *cobra.Command, args []string) error {
			a, err := newApp(c.Context(), global, false, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			httpServer := &http.Server{
				Addr:        opts.Addr,
				Handler:     server.New(a.pipeline).Routes(),
				ReadTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Infof("Listening on %s", opts.Addr)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-c.Context().Done():
			}

			logger.Info("Shutting down HTTP server...")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return httpServer.Shutdown(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "Listen address")

	return cmd
}

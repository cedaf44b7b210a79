package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	openclaw "github.com/liorwn/openclaw-cloudflare"
	"github.com/liorwn/openclaw-cloudflare/internal/logger"
	"github.com/liorwn/openclaw-cloudflare/pkg/client"
	"github.com/liorwn/openclaw-cloudflare/pkg/template"
	"github.com/prometheus/client_golang/prometheus"
)

type command struct {
	flags *GlobalFlags
}

func (c command) loadConfig() (*openclaw.Config, error) {
	if c.flags.ConfigPath == "" {
		return &openclaw.Config{}, nil
	}
	return openclaw.LoadConfig(c.flags.ConfigPath)
}

func (c command) newSystem() (*openclaw.System, *openclaw.Config, error) {
	fc, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	sys, err := openclaw.New(openclaw.Options{Config: fc, Dev: c.flags.Dev})
	if err != nil {
		return nil, nil, err
	}
	return sys, fc, nil
}

func (c command) apiClient(f APIFlags) *client.Client {
	return client.New(client.Config{BaseURL: f.APIUrl, Timeout: f.APITimeout})
}

// Serve runs the daemon: restore, ensure gateway, admin API, periodic sync.
func (c command) Serve(f ServeFlags) error {
	fc, err := c.loadConfig()
	if err != nil {
		return err
	}

	var logCfg logger.Config
	if fc.Log != nil {
		logCfg = logger.Config{
			Dir:        fc.Log.Dir,
			MaxSizeMB:  fc.Log.MaxSizeMB,
			MaxBackups: fc.Log.MaxBackups,
			MaxAgeDays: fc.Log.MaxAgeDays,
			Compress:   fc.Log.Compress,
		}
	}
	log, logCloser, err := logger.New(logCfg)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	if err := openclaw.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	sys, err := openclaw.New(openclaw.Options{Config: fc, Dev: c.flags.Dev, Logger: log})
	if err != nil {
		return err
	}
	defer func() { _ = sys.Close() }()

	if transcript, tc := logger.NewTranscript(logCfg); transcript != nil {
		sys.Runner.SetTranscript(transcript)
		defer func() { _ = tc.Close() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootCtx, cancel := context.WithTimeout(ctx, time.Minute)
	err = sys.Boot(bootCtx)
	cancel()
	if err != nil {
		return err
	}

	listen := f.Listen
	if listen == "" {
		listen = fc.Server.Listen
	}
	if listen == "" {
		listen = ":8080"
	}
	withMetrics := f.Metrics || fc.Server.Metrics

	srv, err := openclaw.NewHTTPServer(listen, f.BasePath, withMetrics, sys)
	if err != nil {
		return err
	}
	log.Info("daemon started", "listen", listen, "dev", c.flags.Dev)

	go sys.RunSyncLoop(ctx, f.SyncInterval)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Sync triggers a backup pass via the daemon, or directly when unreachable.
func (c command) Sync(f APIFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.APITimeout)
	defer cancel()

	api := c.apiClient(f)
	if api.IsReachable(ctx) {
		status, err := api.Sync(ctx)
		if err != nil {
			return err
		}
		printJSON(status)
		return nil
	}

	sys, _, err := c.newSystem()
	if err != nil {
		return err
	}
	defer func() { _ = sys.Close() }()

	status, err := sys.Facade.Sync(ctx)
	if err != nil {
		return err
	}
	printJSON(status)
	return nil
}

// Restore writes stored state back into the sandbox. Always a direct
// operation: the daemon restores on boot, this is the manual override.
func (c command) Restore() error {
	sys, _, err := c.newSystem()
	if err != nil {
		return err
	}
	defer func() { _ = sys.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := sys.Facade.Restore(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("restored %d files\n", res.Files)
	return nil
}

// Status reports storage credential presence and last sync.
func (c command) Status(f APIFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.APITimeout)
	defer cancel()

	api := c.apiClient(f)
	if api.IsReachable(ctx) {
		status, err := api.StorageStatus(ctx)
		if err != nil {
			return err
		}
		printJSON(status)
		return nil
	}

	sys, _, err := c.newSystem()
	if err != nil {
		return err
	}
	defer func() { _ = sys.Close() }()

	status, err := sys.Facade.StorageStatus(ctx)
	if err != nil {
		return err
	}
	printJSON(status)
	return nil
}

// Restart bounces the gateway.
func (c command) Restart(f APIFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.APITimeout)
	defer cancel()

	api := c.apiClient(f)
	if api.IsReachable(ctx) {
		status, err := api.Restart(ctx)
		if err != nil {
			return err
		}
		printJSON(status)
		return nil
	}

	sys, _, err := c.newSystem()
	if err != nil {
		return err
	}
	defer func() { _ = sys.Close() }()

	status, err := sys.Facade.Restart(ctx)
	if err != nil {
		return err
	}
	printJSON(status)
	return nil
}

// ListDevices prints pending and paired devices.
func (c command) ListDevices(f APIFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.APITimeout)
	defer cancel()

	api := c.apiClient(f)
	if api.IsReachable(ctx) {
		list, err := api.ListDevices(ctx)
		if err != nil {
			return err
		}
		printJSON(list)
		return nil
	}

	sys, _, err := c.newSystem()
	if err != nil {
		return err
	}
	defer func() { _ = sys.Close() }()

	list, err := sys.Facade.ListDevices(ctx)
	if err != nil {
		return err
	}
	printJSON(list)
	return nil
}

// ConfigInit writes a starter configuration file.
func (c command) ConfigInit(f ConfigInitFlags) error {
	ct, err := template.NewGenerator().Generate(template.TemplateType(f.Type))
	if err != nil {
		return err
	}
	out := ct.Render()
	if f.Output == "" {
		fmt.Print(out)
		return nil
	}
	if err := os.WriteFile(f.Output, []byte(out), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", f.Output)
	return nil
}

// ApproveDevices approves pairing requests, all pending when none given.
func (c command) ApproveDevices(f ApproveFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.APITimeout)
	defer cancel()

	api := c.apiClient(f.APIFlags)
	if api.IsReachable(ctx) {
		res, err := api.ApproveDevices(ctx, client.ApproveRequest{IDs: f.IDs})
		if err != nil {
			return err
		}
		printJSON(res)
		return nil
	}

	sys, _, err := c.newSystem()
	if err != nil {
		return err
	}
	defer func() { _ = sys.Close() }()

	var res openclaw.ApproveResult
	if len(f.IDs) == 0 {
		res, err = sys.Facade.ApprovePending(ctx)
	} else {
		res, err = sys.Facade.ApproveDevices(ctx, f.IDs)
	}
	if err != nil {
		return err
	}
	printJSON(res)
	return nil
}

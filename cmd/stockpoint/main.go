package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/stockpoint/stockpoint/internal/app"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	runtime, err := app.NewRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error("initialise storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		_ = runtime.Close()
	}()

	if err := run(ctx, runtime, os.Args[1:]); err != nil {
		logger.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, runtime *app.Runtime, args []string) error {
	if len(args) == 0 {
		return usage()
	}
	switch args[0] {
	case "backup":
		if len(args) < 2 {
			return fmt.Errorf("backup: output file required")
		}
		f, err := os.Create(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		if err := runtime.Backup.WriteTo(ctx, f); err != nil {
			return err
		}
		runtime.Logger.Info("backup written", slog.String("file", args[1]))
		return nil

	case "restore":
		if len(args) < 2 {
			return fmt.Errorf("restore: input file required")
		}
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		if err := runtime.Backup.ReadFrom(ctx, f); err != nil {
			return err
		}
		runtime.Products.InvalidateCache(ctx)
		runtime.Sales.InvalidateCache(ctx)
		runtime.Inventory.InvalidateCache(ctx)
		runtime.Logger.Info("store restored", slog.String("file", args[1]))
		return nil

	case "cleanup":
		removed, err := runtime.SalesService.CleanupOldVoidedSales(ctx, runtime.Config.VoidedRetentionDays)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d voided sales\n", removed)
		return nil

	case "status":
		products, err := runtime.Products.GetAll(ctx)
		if err != nil {
			return err
		}
		low, err := runtime.Products.GetLowStockProducts(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("products: %d (%d low on stock)\n", len(products), len(low))
		return nil

	default:
		return usage()
	}
}

func usage() error {
	fmt.Fprintln(os.Stderr, "usage: stockpoint <backup FILE | restore FILE | cleanup | status>")
	return fmt.Errorf("unknown command")
}

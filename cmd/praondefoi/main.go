package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"praondefoi/internal/account"
	"praondefoi/internal/backend"
	"praondefoi/internal/cli"
	"praondefoi/internal/config"
	"praondefoi/internal/core"
	"praondefoi/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	commands := map[string]func(context.Context, *app, []string) error{
		"dashboard":      runDashboard,
		"transactions":   runTransactions,
		"budgets":        runBudgets,
		"goals":          runGoals,
		"import":         runImport,
		"export":         runExport,
		"enqueue-export": runEnqueueExport,
		"runs":           runRuns,
	}

	name := os.Args[1]
	switch name {
	case "help", "-h", "--help":
		printUsage()
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	cfg := cli.LoadAndValidateConfig(logger)
	a := &app{cfg: cfg, logger: logger, accounts: cli.Accounts(cfg), out: os.Stdout}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd(ctx, a, os.Args[2:])
	stop()
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			logger.Error("Command failed", log.NewFields().
				WithOperation(name).
				WithError(err).ToSlice()...)
			fmt.Fprintln(os.Stderr, "Erro:", core.UserMessage(err))
		}
		a.close()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("praondefoi - where did the money go")
	fmt.Println("\nUsage:")
	fmt.Println("  praondefoi <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  dashboard       Monthly overview: summary, balance, budgets, recent transactions")
	fmt.Println("  transactions    Search transactions one page at a time")
	fmt.Println("  budgets         List budgets for a month, or set a category limit")
	fmt.Println("  goals           List goals, create one or contribute to one")
	fmt.Println("  import          Upload a bank statement for import")
	fmt.Println("  export          Export every matching transaction to a sink")
	fmt.Println("  enqueue-export  Queue an export for the export worker")
	fmt.Println("  runs            Show recent export runs")
	fmt.Println("  help            Show this help message")
	fmt.Println("\nRun 'praondefoi <command> -h' for more information on a command.")
}

// app holds what the commands share. The backend and run history are
// opened on first use.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	accounts *account.Resolver
	out      io.Writer

	backend *backend.BackendResult
	closers []func() error
}

func (a *app) finance(ctx context.Context) (backend.Backend, error) {
	if a.backend == nil {
		res, err := cli.OpenBackend(ctx, a.cfg, a.logger)
		if err != nil {
			return nil, err
		}
		a.backend = res
		a.closers = append(a.closers, res.Close)
	}
	return a.backend.Backend, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Cleanup failed", log.FieldError, err)
		}
	}
	a.closers = nil
}

// scope applies an explicit -account flag to ctx.
func scope(ctx context.Context, accountID int64) context.Context {
	if accountID > 0 {
		return account.WithAccount(ctx, accountID)
	}
	return ctx
}

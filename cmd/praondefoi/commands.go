package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"praondefoi/internal/amqp"
	"praondefoi/internal/cli"
	"praondefoi/internal/core"
	"praondefoi/internal/dashboard"
	"praondefoi/internal/finance"
	"praondefoi/internal/metrics"
	"praondefoi/internal/services"
	"praondefoi/internal/storage"
)

const dateLayout = "2006-01-02"

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

// periodFlags registers -month and -year defaulting to the current month.
func periodFlags(fs *flag.FlagSet) func() core.Period {
	now := core.CurrentPeriod(time.Now())
	month := fs.Int("month", now.Month, "month (1-12)")
	year := fs.Int("year", now.Year, "year")
	return func() core.Period { return core.Period{Month: *month, Year: *year} }
}

func parseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

func parseRange(from, to string) (time.Time, time.Time, error) {
	f, err := parseDate(from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t, err := parseDate(to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !t.IsZero() && t.Before(f) {
		return time.Time{}, time.Time{}, fmt.Errorf("-to %s is before -from %s", to, from)
	}
	return f, t, nil
}

func runDashboard(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	period := periodFlags(fs)
	accountID := fs.Int64("account", 0, "account id (default DEFAULT_ACCOUNT_ID)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src, err := a.finance(ctx)
	if err != nil {
		return err
	}
	view := dashboard.NewView(src, a.accounts, a.logger)
	snap, err := view.Refresh(scope(ctx, *accountID), period())
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Conta %d - %02d/%d\n\n", snap.AccountID, snap.Period.Month, snap.Period.Year)
	w := newTable(a.out)
	fmt.Fprintf(w, "Entradas\t%s\n", core.FormatBRL(snap.Summary.TotalIncome))
	fmt.Fprintf(w, "Saídas\t%s\n", core.FormatBRL(snap.Summary.TotalExpense))
	fmt.Fprintf(w, "Saldo do mês\t%s\n", core.FormatBRL(snap.Summary.Balance()))
	fmt.Fprintf(w, "Saldo atual\t%s\n", core.FormatBRL(snap.Balance))
	if snap.Budget.Empty {
		fmt.Fprintf(w, "Orçamento\tnenhum definido\n")
	} else {
		fmt.Fprintf(w, "Orçamento\t%d%% de %s (%s)\n", snap.Budget.Percent, core.FormatBRL(snap.Budget.Limit), snap.Budget.Tier)
	}
	w.Flush()

	if len(snap.Categories) > 0 {
		fmt.Fprintln(a.out, "\nOrçamentos por categoria")
		printCategories(a.out, snap.Categories)
	}
	if len(snap.Distribution) > 0 {
		fmt.Fprintln(a.out, "\nDistribuição de gastos")
		w = newTable(a.out)
		for _, s := range snap.Distribution {
			fmt.Fprintf(w, "  %s\t%s\t%d%%\n", s.CategoryName, core.FormatBRL(s.Total), s.Percent)
		}
		w.Flush()
	}
	if len(snap.Recent) > 0 {
		fmt.Fprintln(a.out, "\nÚltimas transações")
		printTransactions(a.out, snap.Recent)
	}
	for _, msg := range snap.Insights {
		fmt.Fprintln(a.out, "\n*", msg)
	}
	if len(snap.Failed) > 0 {
		fmt.Fprintf(os.Stderr, "\nIndisponível: %s\n", strings.Join(snap.Failed, ", "))
	}
	return nil
}

func printCategories(out io.Writer, rows []metrics.CategoryBudget) {
	w := newTable(out)
	for _, c := range rows {
		fmt.Fprintf(w, "  %s\t%s / %s\t%d%%\t%s\n",
			c.Usage.CategoryName, core.FormatBRL(c.Usage.Spent), core.FormatBRL(c.Usage.Limit), c.Percent, c.Tier)
	}
	w.Flush()
}

func printTransactions(out io.Writer, txs []core.Transaction) {
	w := newTable(out)
	for _, tx := range txs {
		sign := "-"
		if tx.Kind == core.KindIncome {
			sign = "+"
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s%s\t%s\n",
			tx.ID, tx.OccurredAt.Format("02/01/2006"), tx.Description, sign, core.FormatBRL(tx.Amount), tx.CategoryName)
	}
	w.Flush()
}

func runTransactions(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("transactions", flag.ContinueOnError)
	accountID := fs.Int64("account", 0, "account id")
	size := fs.Int("size", dashboard.DefaultSearchSize, "page size")
	offset := fs.Int("offset", 0, "records to skip")
	kind := fs.String("kind", "", "entrada or saida")
	category := fs.Int64("category", 0, "category id")
	from := fs.String("from", "", "first day, YYYY-MM-DD")
	to := fs.String("to", "", "last day, YYYY-MM-DD")
	query := fs.String("q", "", "description contains")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f, t, err := parseRange(*from, *to)
	if err != nil {
		return err
	}
	filter := finance.TransactionFilter{CategoryID: *category, From: f, To: t, Description: *query}
	if *kind != "" {
		k := core.ParseKind(*kind)
		filter.Kind = &k
	}

	src, err := a.finance(ctx)
	if err != nil {
		return err
	}
	res, err := dashboard.NewView(src, a.accounts, a.logger).Search(scope(ctx, *accountID), filter, *offset, *size)
	if err != nil {
		return err
	}

	printTransactions(a.out, res.Items)
	if res.Total != nil {
		fmt.Fprintf(a.out, "\n%d-%d de %d\n", res.Offset+1, res.Offset+len(res.Items), *res.Total)
	}
	if res.HasNext {
		fmt.Fprintf(a.out, "Próxima página: -offset %d\n", res.Offset+len(res.Items))
	}
	return nil
}

func runBudgets(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("budgets", flag.ContinueOnError)
	period := periodFlags(fs)
	accountID := fs.Int64("account", 0, "account id")
	category := fs.Int64("set-category", 0, "set the limit for this category id")
	limit := fs.String("limit", "", "limit amount, e.g. 500,00")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src, err := a.finance(ctx)
	if err != nil {
		return err
	}
	ctx = scope(ctx, *accountID)
	acct := a.accounts.Resolve(ctx)

	if *category > 0 {
		amount, err := core.ParseAmount(*limit)
		if err != nil {
			return err
		}
		id, err := src.CreateBudget(ctx, acct, period(), *category, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Orçamento %d salvo: %s\n", id, core.FormatBRL(amount))
		return nil
	}

	usages, err := src.ListBudgets(ctx, acct, period())
	if err != nil {
		return err
	}
	if len(usages) == 0 {
		fmt.Fprintln(a.out, "Nenhum orçamento definido.")
		return nil
	}
	printCategories(a.out, metrics.Categories(usages))
	agg := metrics.AggregateOf(usages)
	fmt.Fprintf(a.out, "\nTotal: %s de %s (%d%%), restante %s\n",
		core.FormatBRL(agg.Spent), core.FormatBRL(agg.Limit), agg.Percent, core.FormatBRL(agg.Remaining))
	return nil
}

func runGoals(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("goals", flag.ContinueOnError)
	accountID := fs.Int64("account", 0, "account id")
	create := fs.String("create", "", "name of a new goal")
	target := fs.String("target", "", "target amount for -create")
	end := fs.String("end", "", "deadline for -create, YYYY-MM-DD")
	contribute := fs.Int64("contribute", 0, "goal id to contribute to")
	amount := fs.String("amount", "", "amount for -contribute")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src, err := a.finance(ctx)
	if err != nil {
		return err
	}
	ctx = scope(ctx, *accountID)
	acct := a.accounts.Resolve(ctx)

	switch {
	case *create != "":
		value, err := core.ParseAmount(*target)
		if err != nil {
			return err
		}
		deadline, err := parseDate(*end)
		if err != nil {
			return err
		}
		id, err := src.CreateGoal(ctx, acct, core.Goal{
			Name: *create, TargetAmount: value, StartDate: time.Now(), EndDate: deadline,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Meta %d criada.\n", id)
		return nil
	case *contribute > 0:
		value, err := core.ParseAmount(*amount)
		if err != nil {
			return err
		}
		if err := src.Contribute(ctx, *contribute, value); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Contribuição de %s registrada.\n", core.FormatBRL(value))
		return nil
	}

	goals, err := src.ListGoals(ctx, acct)
	if err != nil {
		return err
	}
	w := newTable(a.out)
	for _, g := range metrics.Goals(goals) {
		fmt.Fprintf(w, "%d\t%s\t%s / %s\t%d%%\t%s\n",
			g.Goal.ID, g.Goal.Name, core.FormatBRL(g.Goal.CurrentAmount), core.FormatBRL(g.Goal.TargetAmount), g.Percent, g.Stage)
	}
	return w.Flush()
}

func runImport(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	accountID := fs.Int64("account", 0, "account id")
	file := fs.String("file", "", "statement file (OFX, CSV)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()

	src, err := a.finance(ctx)
	if err != nil {
		return err
	}
	ctx = scope(ctx, *accountID)
	if err := src.ImportStatement(ctx, a.accounts.Resolve(ctx), filepath.Base(*file), f); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Extrato enviado para importação.")
	return nil
}

// exportFlags registers the flags export and enqueue-export share.
func exportFlags(fs *flag.FlagSet) func(ctx context.Context, a *app) (context.Context, services.ExportRequest, error) {
	accountID := fs.Int64("account", 0, "account id")
	from := fs.String("from", "", "first day, YYYY-MM-DD")
	to := fs.String("to", "", "last day, YYYY-MM-DD")
	format := fs.String("format", "", "csv, sheets or blob (default EXPORT_SINK)")
	return func(ctx context.Context, a *app) (context.Context, services.ExportRequest, error) {
		f, t, err := parseRange(*from, *to)
		if err != nil {
			return ctx, services.ExportRequest{}, err
		}
		ctx = scope(ctx, *accountID)
		return ctx, services.ExportRequest{
			AccountID: a.accounts.Resolve(ctx), From: f, To: t, Format: *format,
		}, nil
	}
}

func (a *app) exportService(ctx context.Context, publisher services.Publisher) (*services.ExportService, error) {
	src, err := a.finance(ctx)
	if err != nil {
		return nil, err
	}
	sinks, err := cli.BuildSinks(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	runs := a.runs()
	return cli.NewExportService(a.cfg, src, runs, sinks, publisher, a.logger), nil
}

func (a *app) runs() *storage.SQLiteRepository {
	repo := cli.InitSQLite(a.logger, a.cfg.SQLiteDBPath)
	a.closers = append(a.closers, repo.Close)
	return repo
}

func runExport(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	request := exportFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, req, err := request(ctx, a)
	if err != nil {
		return err
	}

	svc, err := a.exportService(ctx, nil)
	if err != nil {
		return err
	}
	run, err := svc.Run(ctx, req)
	if err != nil {
		if run.ID != "" {
			fmt.Fprintf(os.Stderr, "Exportação %s: %s (%d registros)\n", run.ID, run.Status, run.Records)
		}
		return err
	}
	fmt.Fprintf(a.out, "Exportação %s concluída: %d registros em %d páginas\n%s\n", run.ID, run.Records, run.Pages, run.SinkRef)
	return nil
}

func runEnqueueExport(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("enqueue-export", flag.ContinueOnError)
	request := exportFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, req, err := request(ctx, a)
	if err != nil {
		return err
	}
	if a.cfg.AMQPURL == "" {
		return services.ErrQueueDisabled
	}

	client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue, a.logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, client.Close)

	svc, err := a.exportService(ctx, client)
	if err != nil {
		return err
	}
	run, err := svc.Enqueue(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exportação %s enfileirada (%s).\n", run.ID, run.Format)
	return nil
}

func runRuns(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "how many runs to show")
	id := fs.String("id", "", "show a single run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	repo := a.runs()
	var runs []storage.Run
	if *id != "" {
		run, err := repo.GetRun(ctx, *id)
		if err != nil {
			return err
		}
		runs = []storage.Run{run}
	} else {
		var err error
		if runs, err = repo.ListRuns(ctx, *limit); err != nil {
			return err
		}
	}

	w := newTable(a.out)
	fmt.Fprintln(w, "ID\tCONTA\tFORMATO\tSTATUS\tREGISTROS\tCRIADO\tDESTINO/ERRO")
	for _, r := range runs {
		detail := r.SinkRef
		if r.Error != "" {
			detail = r.Error
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.AccountID, r.Format, r.Status, r.Records, r.CreatedAt.Local().Format("02/01 15:04"), detail)
	}
	return w.Flush()
}

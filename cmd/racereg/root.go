package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/racereg/internal/config"
	"github.com/JonMunkholm/racereg/internal/core"
	"github.com/JonMunkholm/racereg/internal/logging"
	"github.com/JonMunkholm/racereg/internal/store"
	"github.com/JonMunkholm/racereg/internal/watch"
)

type rootOptions struct {
	add       string
	startList bool
	date      string
	label     string
	list      bool
	xlsx      bool
	yes       bool
}

// app carries what every command needs after configuration is loaded.
type app struct {
	cfg *config.Config
	yes bool
}

func newRootCmd() *cobra.Command {
	var opts rootOptions
	a := &app{}

	cmd := &cobra.Command{
		Use:   "racereg [registrations.csv]",
		Short: "Reconcile race signups and produce start lists and rosters",
		Long: `racereg imports the signup form export into the registration database,
writes the race-day start list for the timing software and prints an
alphabetical roster for the registration desk.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			if opts.xlsx {
				cfg.Export.XLSX = true
			}
			a.cfg = cfg
			a.yes = opts.yes
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			addSet := cmd.Flags().Changed("add")
			if len(args) == 1 {
				opts.add = args[0]
				addSet = true
			}
			if !addSet && !opts.startList && !opts.list {
				return cmd.Help()
			}
			return a.run(cmd, opts, addSet)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.add, "add", "a", "", "Add registrations from a CSV file (default from IMPORT_DEFAULT_FILE)")
	f.Lookup("add").NoOptDefVal = " "
	f.BoolVarP(&opts.startList, "startlist", "s", false, "Create a start list")
	f.StringVarP(&opts.date, "date", "d", "", "Race date as YYYY-MM-DD (default today)")
	f.StringVarP(&opts.label, "label", "o", "", "Name the start list file after this label instead of the date")
	f.BoolVarP(&opts.list, "list", "l", false, "Create an alphabetical registrations list")
	cmd.PersistentFlags().BoolVar(&opts.xlsx, "xlsx", false, "Also write .xlsx copies of start lists and rosters")
	cmd.PersistentFlags().BoolVarP(&opts.yes, "yes", "y", false, "Answer yes to every confirmation prompt")

	cmd.AddCommand(newOverrideCmd(a), newHistoryCmd(a), newResetCmd(a), newWatchCmd(a))
	return cmd
}

func (a *app) run(cmd *cobra.Command, opts rootOptions, add bool) error {
	raceDate := core.DateOf(time.Now())
	if opts.date != "" {
		d, err := core.ParseISODate(opts.date)
		if err != nil {
			return err
		}
		raceDate = d
	}

	return a.withService(cmd, func(ctx context.Context, svc *core.Service) error {
		out := cmd.OutOrStdout()

		if add {
			path := strings.TrimSpace(opts.add)
			if path == "" {
				path = a.cfg.Import.DefaultFile
			}
			report, err := svc.ImportFile(ctx, path)
			if err != nil {
				return err
			}
			printImport(out, report)
		}

		if opts.startList {
			list, path, err := svc.WriteStartList(ctx, raceDate, opts.label)
			if err != nil {
				return err
			}
			printWarnings(out, list.Warnings)
			fmt.Fprintf(out, "Start list for %s with %d entries written to %s\n", raceDate, len(list.Entries), path)
		}

		if opts.list {
			roster, path, err := svc.WriteRoster(ctx)
			if err != nil {
				return err
			}
			printWarnings(out, roster.Warnings)
			fmt.Fprintf(out, "Registrations list with %d entries written to %s\n", len(roster.Entries), path)
		}
		return nil
	})
}

// withService opens the configured store for the duration of fn.
func (a *app) withService(cmd *cobra.Command, fn func(context.Context, *core.Service) error) error {
	ctx := cmd.Context()

	var confirm store.Confirmer = store.AlwaysCreate
	if !a.yes {
		confirm = &promptConfirmer{in: cmd.InOrStdin(), out: cmd.ErrOrStderr()}
	}

	st, err := store.Open(ctx, a.cfg.Store, confirm)
	if err != nil {
		return err
	}
	defer st.Close()

	logging.FromContext(ctx).Debug("store opened", "store", a.cfg.Store.Describe())
	return fn(ctx, core.NewService(st, a.cfg))
}

func newOverrideCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "override <bib> <race-gender>",
		Short: "Set the race category of a non-binary registrant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var bib int64
			if _, err := fmt.Sscan(args[0], &bib); err != nil {
				return fmt.Errorf("invalid bib %q: %w", args[0], err)
			}
			return a.withService(cmd, func(ctx context.Context, svc *core.Service) error {
				if err := svc.SetRaceGender(ctx, bib, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Bib %d races as %s\n", bib, strings.TrimSpace(args[1]))
				return nil
			})
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent imports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *core.Service) error {
				batches, err := svc.History(ctx, limit)
				if err != nil {
					return err
				}
				printHistory(cmd.OutOrStdout(), batches)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of imports to show (0 for all)")
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete all registrations, race genders and import history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.yes {
				ok, err := ask(cmd.InOrStdin(), cmd.ErrOrStderr(), "Delete ALL registrations? [y/N] ")
				if err != nil || !ok {
					return err
				}
			}
			return a.withService(cmd, func(ctx context.Context, svc *core.Service) error {
				if err := svc.Reset(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All registrations deleted")
				return nil
			})
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [registrations.csv]",
		Short: "Import the signup file again every time it changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Import.DefaultFile
			if len(args) == 1 {
				path = args[0]
			}
			return a.withService(cmd, func(ctx context.Context, svc *core.Service) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Watching %s, press Ctrl+C to stop\n", path)
				return watch.File(ctx, path, a.cfg.Import.WatchDebounce, func(ctx context.Context) error {
					report, err := svc.ImportFile(ctx, path)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", core.MapError(err))
						return err
					}
					printImport(out, report)
					return nil
				})
			})
		},
	}
}

// promptConfirmer asks on the terminal before creating a database file.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p *promptConfirmer) ConfirmCreate(path string) (bool, error) {
	return ask(p.in, p.out, fmt.Sprintf("Database %s does not exist. Create it? [y/N] ", path))
}

// ask prints question and reports whether the answer was yes.
func ask(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprint(out, question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func printImport(w io.Writer, r *core.ImportReport) {
	fmt.Fprintf(w, "Added %d, updated %d, skipped %d (%d empty, %d invalid, %d failed)\n",
		r.Reconcile.Inserted, r.Reconcile.Updated, r.Skipped(),
		r.Classification.Empty, len(r.Classification.Invalid), len(r.Reconcile.Failed))
	for _, f := range r.Reconcile.Failed {
		fmt.Fprintf(w, "  %v\n", f.Err)
	}
	if r.InvalidFile != "" {
		fmt.Fprintf(w, "Invalid registrations written to %s\n", r.InvalidFile)
	}
	if r.DuplicateFile != "" {
		fmt.Fprintf(w, "Duplicate registrations written to %s\n", r.DuplicateFile)
	}
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintf(w, "WARNING: %s\n", msg)
	}
}

func printHistory(w io.Writer, batches []core.ImportBatch) {
	if len(batches) == 0 {
		fmt.Fprintln(w, "No imports recorded")
		return
	}
	for _, b := range batches {
		fmt.Fprintf(w, "%s  %-30s  +%d ~%d  empty %d  invalid %d  failed %d  %s\n",
			b.StartedAt.Local().Format("2006-01-02 15:04"), b.FileName,
			b.Inserted, b.Updated, b.Empty, b.Invalid, b.Failed, b.ID)
	}
}

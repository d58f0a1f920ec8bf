package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/urfave/cli/v3"

	"github.com/HexSleeves/toolloop/internal/output"
	"github.com/HexSleeves/toolloop/internal/state"
	"github.com/HexSleeves/toolloop/internal/tools"
)

var toolDescriptions = map[string]string{
	tools.GetProductPrice: "price of a product by name, or \"not found\"",
	tools.CalculateTotal:  "amount plus 20% tax, truncated to an integer",
}

func cmdTools(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	registry := tools.NewProductTools(tools.NewCatalog(cfg.Tools.Prices))
	p := newPrinter(cmd)

	if cmd.Bool("json") {
		return json.NewEncoder(stdout(cmd)).Encode(registry.Names())
	}

	p.Header("Tools")
	var items []output.BulletItem
	for _, name := range registry.Names() {
		items = append(items, output.BulletItem{Text: fmt.Sprintf("%s: %s", name, toolDescriptions[name])})
	}
	p.BulletList(items)

	p.Section("Catalog")
	var rows [][]string
	for _, name := range sortedKeys(cfg.Tools.Prices) {
		rows = append(rows, []string{name, strconv.Itoa(cfg.Tools.Prices[name])})
	}
	p.Table([]string{"Product", "Price"}, rows)
	return nil
}

func cmdTool(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 1 {
		return fmt.Errorf("usage: toolloop tool <name> <argument>")
	}
	name := cmd.Args().First()
	arg := strings.Join(cmd.Args().Tail(), " ")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	registry := tools.NewProductTools(tools.NewCatalog(cfg.Tools.Prices))

	out, err := registry.Dispatch(ctx, name, arg)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout(cmd), out)
	return nil
}

// openState opens the run database, refusing to create one where none exists.
func openState(cmd *cli.Command) (*state.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.StatePath(state.DBFile)); os.IsNotExist(err) {
		return nil, fmt.Errorf("no recorded runs in %s. Run 'toolloop run <prompt>' first", cfg.State.Dir)
	}
	db, err := state.OpenDB(cfg.State.Dir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func cmdRuns(ctx context.Context, cmd *cli.Command) error {
	db, err := openState(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(stdout(cmd))
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	p := newPrinter(cmd)
	if len(runs) == 0 {
		p.Info("No runs found. Run 'toolloop run <prompt>' to start one.")
		return nil
	}

	p.Header("Runs")
	var rows [][]string
	for _, r := range runs {
		rows = append(rows, []string{
			shortID(r.ID),
			output.StatusIcon(r.Status) + " " + r.Status,
			fmt.Sprintf("%d/%d", r.Iterations, r.MaxIterations),
			r.Provider,
			runewidth.Truncate(r.Prompt, 40, "..."),
		})
	}
	p.Table([]string{"Run", "Status", "Turns", "Provider", "Prompt"}, rows)

	counts, err := db.CountRunsByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count runs: %w", err)
	}
	p.Printf("\n%s\n", runsFooter(len(runs), counts))
	return nil
}

// runsFooter summarizes the whole store below the listed page, e.g.
// "Showing 2 of 5 run(s): 4 answered, 1 timeout".
func runsFooter(shown int, counts map[string]int) string {
	total := 0
	parts := make([]string, 0, len(counts))
	for _, st := range sortedKeys(counts) {
		total += counts[st]
		parts = append(parts, fmt.Sprintf("%d %s", counts[st], st))
	}
	return fmt.Sprintf("Showing %d of %d run(s): %s", shown, total, strings.Join(parts, ", "))
}

func cmdShow(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: toolloop show <run-id>")
	}
	db, err := openState(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.FindRun(ctx, cmd.Args().First())
	if err != nil {
		return err
	}
	msgs, err := db.GetMessages(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	events, err := db.EventCount(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("count events: %w", err)
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(stdout(cmd))
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"run": run, "messages": msgs, "events": events})
	}

	p := newPrinter(cmd)
	p.Header("Run " + run.ID)
	pairs := [][]string{
		{"Status", output.StatusIcon(run.Status) + " " + run.Status},
		{"Provider", run.Provider},
		{"Model", run.Model},
		{"Turns", fmt.Sprintf("%d/%d", run.Iterations, run.MaxIterations)},
		{"Started", run.CreatedAt},
		{"Events", strconv.Itoa(events)},
	}
	if run.Answer != "" {
		pairs = append(pairs, []string{"Answer", run.Answer})
	}
	if run.Error != "" {
		pairs = append(pairs, []string{"Error", run.Error})
	}
	p.KeyValue(pairs)
	p.Divider()

	roles := make([]string, len(msgs))
	contents := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i], contents[i] = m.Role, m.Content
	}
	p.Transcript(roles, contents)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sortedKeys(m map[string]int) []string {
	return slices.Sorted(maps.Keys(m))
}

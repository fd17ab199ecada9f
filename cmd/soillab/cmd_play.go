package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nvandessel/soillab/internal/experiment"
	"github.com/nvandessel/soillab/internal/ledger"
	"github.com/nvandessel/soillab/internal/models"
	"github.com/nvandessel/soillab/internal/store"
	"github.com/spf13/cobra"
)

const playHelp = `Commands:
  start [seed]                          start a session
  select <container>                    choose the container (first step only)
  act <tag> <kind> [container] [soil]   report an interaction, e.g. "act Container drag A"
  ack <handle>                          acknowledge an effect (with --manual-ack)
  status                                show the current step
  record                                show the record board
  reset                                 abandon the session
  help                                  show this help
  quit                                  leave`

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a session interactively",
		Long: `Play a session one interaction at a time. Commands are read from stdin,
one per line, so a session can also be piped in.

Effects are acknowledged as soon as they are issued unless --manual-ack is
given, in which case every effect must be acknowledged with "ack <handle>"
before the next interaction is accepted. With --json every status is
printed as a one-line JSON snapshot.

` + playHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			seed, _ := cmd.Flags().GetUint64("seed")
			manualAck, _ := cmd.Flags().GetBool("manual-ack")
			noSave, _ := cmd.Flags().GetBool("no-save")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := newLogger(cfg)
			trace := newTrace(cfg)
			defer trace.Close()

			var runs store.RunStore
			if !noSave {
				archive, err := openArchive(cfg)
				if err != nil {
					return err
				}
				defer archive.Close()
				runs = archive
			}

			opts := labOptions(cfg, seed)
			opts.Logger = logger
			opts.Trace = trace

			p := &player{
				out:       cmd.OutOrStdout(),
				opts:      opts,
				manualAck: manualAck,
				jsonOut:   jsonOut,
				runs:      runs,
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			notifySignals(sigChan)
			go func() {
				select {
				case <-sigChan:
					cancel()
				case <-ctx.Done():
				}
			}()

			return p.loop(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().Uint64("seed", 0, "Seed for the simulated balance (0 uses the configured seed or a random one)")
	cmd.Flags().Bool("manual-ack", false, "Require an explicit ack for every effect")
	cmd.Flags().Bool("no-save", false, "Do not archive the finished session")

	return cmd
}

// player drives one orchestrator from text commands.
type player struct {
	out       io.Writer
	opts      experiment.Options
	manualAck bool
	jsonOut   bool
	runs      store.RunStore

	orch  *experiment.Orchestrator
	seed  uint64 // resolved seed of the current session
	saved bool
}

// loop reads commands from in until quit, EOF or cancellation.
func (p *player) loop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	fmt.Fprintln(p.out, `Type "start" to begin, "help" for commands.`)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(p.out, "interrupted")
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if quit := p.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// handle runs one command line and reports whether the player should stop.
func (p *player) handle(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return false
	}

	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(p.out, playHelp)
	case "start":
		p.start(args)
	case "status":
		p.printStatus()
	case "record":
		p.printRecord()
	case "reset":
		if p.orch != nil {
			p.orch.Reset()
			p.saved = false
		}
		fmt.Fprintln(p.out, "session reset")
	case "select":
		if !p.requireSession() {
			return false
		}
		if len(args) != 1 {
			fmt.Fprintln(p.out, "usage: select <container>")
			return false
		}
		if err := p.orch.SelectContainer(args[0]); err != nil {
			fmt.Fprintf(p.out, "refused: %v\n", err)
			return false
		}
		p.printStatus()
	case "act":
		p.act(ctx, args)
	case "ack":
		p.ack(ctx, args)
	default:
		fmt.Fprintf(p.out, "unknown command %q (try help)\n", cmd)
	}
	return false
}

func (p *player) start(args []string) {
	if p.orch != nil && p.orch.State() == experiment.StateRunning {
		fmt.Fprintln(p.out, "refused: experiment already running")
		return
	}
	opts := p.opts
	if len(args) > 0 {
		seed, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(p.out, "invalid seed %q\n", args[0])
			return
		}
		opts.Seed = seed
	}
	if opts.Weigher == nil {
		opts.Seed = ledger.ResolveSeed(opts.Seed)
	}

	o, err := experiment.New(opts)
	if err != nil {
		fmt.Fprintf(p.out, "error: %v\n", err)
		return
	}
	if err := o.Start(); err != nil {
		fmt.Fprintf(p.out, "refused: %v\n", err)
		return
	}
	p.orch = o
	p.seed = opts.Seed
	p.saved = false
	fmt.Fprintf(p.out, "session started (seed %d)\n", opts.Seed)
	p.printStatus()
}

func (p *player) act(ctx context.Context, args []string) {
	if !p.requireSession() {
		return
	}
	if len(args) < 2 {
		fmt.Fprintln(p.out, "usage: act <tag> <kind> [container] [soil]")
		return
	}
	tag, err := models.ParseSubjectTag(args[0])
	if err != nil {
		fmt.Fprintf(p.out, "error: %v\n", err)
		return
	}
	kind, err := models.ParseActionKind(args[1])
	if err != nil {
		fmt.Fprintf(p.out, "error: %v\n", err)
		return
	}
	a := experiment.Action{Tag: tag, Kind: kind}
	if len(args) > 2 {
		a.ContainerID = args[2]
	}
	if len(args) > 3 {
		soil, err := models.ParseSoilType(args[3])
		if err != nil {
			fmt.Fprintf(p.out, "error: %v\n", err)
			return
		}
		a.Soil = soil
	}

	eff, err := p.orch.ReportAction(a)
	if err != nil {
		fmt.Fprintf(p.out, "refused: %v\n", err)
		return
	}
	p.settle(ctx, eff)
}

func (p *player) ack(ctx context.Context, args []string) {
	if !p.requireSession() {
		return
	}
	if len(args) != 1 {
		fmt.Fprintln(p.out, "usage: ack <handle>")
		return
	}
	h, err := strconv.ParseUint(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		fmt.Fprintf(p.out, "invalid handle %q\n", args[0])
		return
	}
	next, err := p.orch.AcknowledgeEffectComplete(experiment.EffectHandle(h))
	if err != nil {
		fmt.Fprintf(p.out, "refused: %v\n", err)
		return
	}
	p.settle(ctx, next)
}

// settle prints eff. Without manual acknowledgment it also completes eff
// and every follow-up.
func (p *player) settle(ctx context.Context, eff *experiment.Effect) {
	for eff != nil {
		fmt.Fprintf(p.out, "effect %s\n", eff)
		if p.manualAck {
			fmt.Fprintf(p.out, "waiting for ack %d\n", eff.Handle)
			return
		}
		next, err := p.orch.AcknowledgeEffectComplete(eff.Handle)
		if err != nil {
			fmt.Fprintf(p.out, "error: %v\n", err)
			return
		}
		eff = next
	}
	p.printStatus()
	p.archiveIfEnded(ctx)
}

func (p *player) archiveIfEnded(ctx context.Context) {
	if p.orch.State() != experiment.StateEnded || p.saved {
		return
	}
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.orch.RecordText())
	p.saved = true
	if p.runs == nil {
		return
	}
	r1, r2 := p.orch.Records()
	lang := valueOrDefault(p.opts.Language, "en")
	id, err := p.runs.SaveRun(ctx, store.NewRun(p.seed, lang, r1, r2, p.orch.RecordText()))
	if err != nil {
		fmt.Fprintf(p.out, "failed to archive run: %v\n", err)
		return
	}
	fmt.Fprintf(p.out, "archived as %s\n", id)
}

func (p *player) requireSession() bool {
	if p.orch == nil {
		fmt.Fprintln(p.out, `no session (type "start")`)
		return false
	}
	return true
}

func (p *player) printStatus() {
	if p.jsonOut {
		p.printJSONStatus()
		return
	}
	if p.orch == nil {
		fmt.Fprintln(p.out, "idle")
		return
	}
	snap := p.orch.Snapshot()
	switch snap.State {
	case experiment.StateIdle:
		fmt.Fprintln(p.out, "idle")
		return
	case experiment.StateEnded:
		fmt.Fprintln(p.out, "experiment complete")
		return
	}

	fmt.Fprintf(p.out, "[round %d] %s: %s\n", snap.Round, snap.Step, snap.Instruction)
	var extras []string
	if snap.SelectedContainer != "" {
		extras = append(extras, "container "+snap.SelectedContainer)
	}
	if snap.ShowsRecord {
		extras = append(extras, fmt.Sprintf("balance %.2fg, RecordControl offered", snap.BalanceReading))
	}
	if snap.ShowsSkip {
		extras = append(extras, "SkipControl offered")
	}
	if snap.Pending != nil {
		extras = append(extras, fmt.Sprintf("pending effect %d", snap.Pending.Handle))
	}
	if len(extras) > 0 {
		fmt.Fprintf(p.out, "  (%s)\n", strings.Join(extras, "; "))
	}
}

func (p *player) printRecord() {
	if p.orch == nil || p.orch.RecordText() == "" {
		fmt.Fprintln(p.out, "No measurements recorded yet.")
		return
	}
	fmt.Fprintln(p.out, p.orch.RecordText())
}

// printJSONStatus writes the session snapshot as one JSON line.
func (p *player) printJSONStatus() {
	if p.orch == nil {
		json.NewEncoder(p.out).Encode(map[string]string{"state": string(experiment.StateIdle)})
		return
	}
	json.NewEncoder(p.out).Encode(p.orch.Snapshot())
}

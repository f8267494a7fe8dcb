package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/wippyai/replica"
	"github.com/wippyai/replica/engine"
	"github.com/wippyai/replica/registry"
	"github.com/wippyai/replica/wire"
)

func main() {
	var (
		logFile     = flag.String("log", "", "Path to a recorded message log (concatenated CBOR envelopes)")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose engine logging")
	)
	flag.Parse()

	if *logFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: replay -log <messages.cbor>")
		fmt.Fprintln(os.Stderr, "       replay -log <messages.cbor> -i  (interactive mode)")
		os.Exit(1)
	}

	msgs, err := readLog(*logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(*logFile, msgs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(msgs, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// readLog parses a log of back-to-back CBOR envelopes into messages.
func readLog(path string) ([]wire.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	dec := cbor.NewDecoder(f)
	var msgs []wire.Message
	for {
		var raw cbor.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read envelope %d: %w", len(msgs), err)
		}
		msg, err := wire.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode envelope %d: %w", len(msgs), err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func run(msgs []wire.Message, verbose bool) error {
	logger := zap.NewNop()
	if verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
	}

	e := engine.New(engine.Options{Logger: logger})
	defer e.Close()

	ctx := context.Background()
	for i, msg := range msgs {
		if err := e.Handle(ctx, msg); err != nil {
			fmt.Printf("%4d  %-12s %s\n", i+1, msg.Kind(), errStyle.Render(err.Error()))
			continue
		}
		fmt.Printf("%4d  %-12s ok\n", i+1, msg.Kind())
	}
	e.Hub().Wait()

	fmt.Printf("\nEntities: %d active, %d pending\n\n",
		e.Registry().Len(replica.TierActive),
		e.Registry().Len(replica.TierPending))
	fmt.Print(renderTree(e.Registry()))
	return nil
}

var (
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD27D"))
	tokenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

// renderTree prints the replicated graph parents-first, children sorted by
// id, with the tier of every node.
func renderTree(reg *registry.Registry) string {
	var b strings.Builder
	for _, ent := range reg.TopLevel() {
		renderSubtree(&b, reg, ent, 0)
	}
	return b.String()
}

func renderSubtree(b *strings.Builder, reg *registry.Registry, ent *registry.Entity, depth int) {
	tier, _ := reg.Tier(ent.ID)
	badge := activeStyle.Render("active")
	if tier == replica.TierPending {
		badge = pendingStyle.Render("pending")
	}

	b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(b, "%s #%d [%s]", tokenStyle.Render(string(ent.Token)), ent.ID, badge)
	if ent.BindRequired {
		b.WriteString(" bind")
		if ent.Resource != nil {
			b.WriteString("=bound")
		}
	}
	if len(ent.Data) > 0 {
		fmt.Fprintf(b, " %s", summarizeData(ent.Data))
	}
	b.WriteByte('\n')

	for _, cid := range ent.ChildIDs() {
		if child, _, ok := reg.Lookup(cid); ok {
			renderSubtree(b, reg, child, depth+1)
		}
	}
}

// summarizeData renders the top level of a data tree on one line, keys
// sorted for stable output.
func summarizeData(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := data[k].(type) {
		case map[string]any:
			parts = append(parts, fmt.Sprintf("%s={%d}", k, len(v)))
		case []any:
			parts = append(parts, fmt.Sprintf("%s=[%d]", k, len(v)))
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return "{" + strings.Join(parts, " ") + "}"
}

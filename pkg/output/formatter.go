package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ritzau/calltrace/pkg/cycles"
	"github.com/ritzau/calltrace/pkg/definition"
	"github.com/ritzau/calltrace/pkg/graph"
)

// ReportOptions selects the optional report sections
type ReportOptions struct {
	// Paths lists the call sites of every method id
	Paths bool
	// Modules adds the module rollup and module cycles
	Modules bool
}

// PrintReport prints a nicely formatted summary of a traced definition
func PrintReport(w io.Writer, def *definition.Definition, opts ReportOptions) {
	// Color definitions
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	title := "Call Trace Report: " + def.Title
	bold.Fprintln(w, title)
	bold.Fprintln(w, strings.Repeat("=", len(title)))
	if def.Group != "" {
		fmt.Fprintf(w, "Group: %s\n", def.Group)
	}
	fmt.Fprintf(w, "Sources: %d\n", def.Len())
	fmt.Fprintf(w, "Dependencies: %d\n", def.DependencyCount())
	fmt.Fprintln(w)

	// Sources and their outgoing dependencies
	for _, source := range def.Sources() {
		yellow.Fprintf(w, "%s", source.Name())
		if modules := source.ModuleNames(); len(modules) > 0 {
			cyan.Fprintf(w, " [%s]", strings.Join(modules, ", "))
		}
		fmt.Fprintln(w)

		for _, dep := range source.Dependencies() {
			fmt.Fprintf(w, "  -> %s\n", dep.Name())
			for _, m := range dep.MethodIDs() {
				paths := m.Paths()
				fmt.Fprintf(w, "       %s (%d call site%s)\n", m.HumanName(), len(paths), plural(len(paths)))
				if opts.Paths {
					for _, p := range paths {
						fmt.Fprintf(w, "         %s\n", p)
					}
				}
			}
		}
	}
	fmt.Fprintln(w)

	if opts.Modules {
		bold.Fprintln(w, "MODULE DEPENDENCIES:")
		moduleDeps := graph.ModuleDependencies(def)
		if len(moduleDeps) == 0 {
			fmt.Fprintln(w, "  none")
		}
		for _, md := range moduleDeps {
			fmt.Fprintf(w, "  %s -> %s (%d edge%s)\n", md.From, md.To, len(md.Sources), plural(len(md.Sources)))
		}
		fmt.Fprintln(w)
	}

	// Cycles
	sourceCycles := cycles.FindSourceCycles(def)
	printCycles(w, red, "CIRCULAR SOURCE DEPENDENCIES:", sourceCycles)
	var moduleCycles []cycles.Cycle
	if opts.Modules {
		moduleCycles = cycles.FindModuleCycles(def)
		printCycles(w, red, "CIRCULAR MODULE DEPENDENCIES:", moduleCycles)
	}

	if len(sourceCycles) == 0 && len(moduleCycles) == 0 {
		green.Fprintln(w, "✓ No circular dependencies")
	}
}

func printCycles(w io.Writer, c *color.Color, heading string, found []cycles.Cycle) {
	if len(found) == 0 {
		return
	}
	c.Fprintln(w, heading)
	for _, cycle := range found {
		fmt.Fprintf(w, "  %s\n", strings.Join(cycle.Nodes, " <-> "))
	}
	fmt.Fprintln(w)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

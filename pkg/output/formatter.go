package output

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/klarvik/schemascope/pkg/graph"
)

// PrintGraphReport prints a nicely formatted schema graph summary with colors
func PrintGraphReport(csnDirectory string, stats graph.Statistics, cacheUsed bool) {
	// Color definitions
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Println("Schemascope - Schema Graph Report")
	bold.Println("=================================")
	fmt.Printf("CSN directory: %s\n", csnDirectory)
	if cacheUsed {
		green.Println("Source: cache")
	} else {
		yellow.Println("Source: rebuilt from CSN corpus")
	}
	fmt.Println()

	fmt.Printf("Nodes: %d\n", stats.NodeCount)
	cyan.Printf("  products: %d\n", stats.NodesByType[string(graph.NodeTypeProduct)])
	cyan.Printf("  tables:   %d\n", stats.NodesByType[string(graph.NodeTypeTable)])

	fmt.Printf("Edges: %d\n", stats.EdgeCount)
	cyan.Printf("  contains: %d\n", stats.EdgesByType[string(graph.EdgeTypeContains)])
	cyan.Printf("  fk:       %d\n", stats.EdgesByType[string(graph.EdgeTypeForeignKey)])
	fmt.Println()

	if stats.NodeCount == 0 {
		yellow.Println("No entities found. Is the CSN directory correct?")
		return
	}
	green.Printf("Summary: %d data products, %d tables, %d foreign keys\n",
		stats.NodesByType[string(graph.NodeTypeProduct)],
		stats.NodesByType[string(graph.NodeTypeTable)],
		stats.EdgesByType[string(graph.EdgeTypeForeignKey)])
}

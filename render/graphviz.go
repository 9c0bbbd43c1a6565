// ABOUTME: Layout hand-off for display graphs: DOT text, Cytoscape JSON, or SVG/PNG via the graphviz dot command.
// ABOUTME: Graphviz is optional; svg and png fail with a clear error when it is not installed.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/2389-research/conceptgraph/dot"
)

// Output formats.
const (
	FormatDOT  = "dot"
	FormatJSON = "json"
	FormatSVG  = "svg"
	FormatPNG  = "png"
)

// ErrUnsupportedFormat is returned for an unknown output format.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ErrNoGraphviz is returned when svg or png output is requested without graphviz installed.
var ErrNoGraphviz = errors.New("graphviz dot command not found")

// Render produces output for a display graph in the given format.
func Render(ctx context.Context, g *dot.Graph, format string) ([]byte, error) {
	if g == nil {
		return nil, fmt.Errorf("cannot render nil graph")
	}

	switch format {
	case FormatDOT:
		return []byte(dot.Serialize(g)), nil
	case FormatJSON:
		return dot.MarshalElements(g)
	case FormatSVG, FormatPNG:
		return RenderDOTSource(ctx, dot.Serialize(g), format)
	default:
		return nil, fmt.Errorf("%q: %w: supported formats are dot, json, svg, png", format, ErrUnsupportedFormat)
	}
}

// GraphvizAvailable checks whether the graphviz dot command is installed and reachable.
func GraphvizAvailable() bool {
	_, err := exec.LookPath("dot")
	return err == nil
}

// RenderDOTSource renders raw DOT text. For "dot" it returns the input as-is.
func RenderDOTSource(ctx context.Context, dotText string, format string) ([]byte, error) {
	if dotText == "" {
		return nil, fmt.Errorf("cannot render empty DOT text")
	}

	switch format {
	case FormatDOT:
		return []byte(dotText), nil
	case FormatSVG, FormatPNG:
		return runGraphviz(ctx, dotText, format)
	default:
		return nil, fmt.Errorf("%q: %w: supported formats are dot, svg, png", format, ErrUnsupportedFormat)
	}
}

// runGraphviz pipes DOT text to the graphviz dot command and returns the output.
func runGraphviz(ctx context.Context, dotText string, format string) ([]byte, error) {
	if !GraphvizAvailable() {
		return nil, fmt.Errorf("%w: install graphviz to render %s output", ErrNoGraphviz, format)
	}

	cmd := exec.CommandContext(ctx, "dot", "-T"+format)
	cmd.Stdin = strings.NewReader(dotText)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("graphviz dot command failed: %w: %s", err, stderr.String())
	}

	return stdout.Bytes(), nil
}

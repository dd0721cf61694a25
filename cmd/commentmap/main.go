package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/comment-bridge/comment"
	"github.com/wippyai/comment-bridge/heap"
	"github.com/wippyai/comment-bridge/linear"
	"github.com/wippyai/comment-bridge/mapper"
)

func main() {
	var (
		inFile      = flag.String("in", "", "Path to a comment JSON file (default stdin)")
		hostKind    = flag.String("host", "heap", "Host runtime: heap or wasm")
		namespace   = flag.String("ns", mapper.DefaultNamespace, "Package of the host comment classes")
		memPages    = flag.Uint("pages", 0, "Memory limit in 64KB pages for -host wasm (0 = default)")
		verbose     = flag.Bool("v", false, "Enable debug logging")
		showWIT     = flag.Bool("wit", false, "Print the WIT types of the wasm host")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *hostKind != "heap" && *hostKind != "wasm" {
		fmt.Fprintln(os.Stderr, "Usage: commentmap [-in comment.json] [-host heap|wasm] [-ns namespace] [-v]")
		fmt.Fprintln(os.Stderr, "       commentmap -host wasm -wit")
		fmt.Fprintln(os.Stderr, "       commentmap -in comment.json -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		mapper.SetLogger(logger.Named("mapper"))
		heap.SetLogger(logger.Named("heap"))
		linear.SetLogger(logger.Named("linear"))
	}

	opts := options{
		host:      *hostKind,
		namespace: *namespace,
		pages:     uint32(*memPages),
	}

	ctx := context.Background()

	if *showWIT {
		if err := printWIT(ctx, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *interactive {
		if err := checkInteractive(*inFile, term.IsTerminal(int(os.Stdout.Fd()))); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	c, err := readComment(*inFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(ctx, opts, c); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, opts, c); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// checkInteractive rejects -i when the TUI could not read keys: stdin is
// taken by the comment input, or stdout is not a terminal.
func checkInteractive(inFile string, stdoutTTY bool) error {
	if inFile == "" {
		return fmt.Errorf("interactive mode needs -in; stdin is used for keyboard input")
	}
	if !stdoutTTY {
		return fmt.Errorf("interactive mode needs a terminal on stdout")
	}
	return nil
}

func readComment(path string) (*comment.ParsedComment, error) {
	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	return comment.Decode(r)
}

func run(ctx context.Context, opts options, c *comment.ParsedComment) error {
	res, err := mapInto(ctx, opts, c)
	if err != nil {
		return err
	}
	defer res.close()

	fmt.Printf("Host: %s\n", opts.host)
	fmt.Printf("Namespace: %s\n", opts.namespace)
	fmt.Printf("Spannables: %d\n\n", len(c.Spannables))
	fmt.Print(res.summary)

	if res.lifted != nil {
		fmt.Printf("\n--- lifted ---\n")
		return comment.Encode(os.Stdout, res.lifted)
	}
	return nil
}

func printWIT(ctx context.Context, opts options) error {
	b, err := opts.bridge()
	if err != nil {
		return err
	}
	rt, err := b.NewLinear(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)
	fmt.Print(rt.WIT())
	return nil
}

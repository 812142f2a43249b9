package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"image-library/internal/descriptions"
	"image-library/internal/metadata"
)

const (
	// Default timeout for description index operations
	defaultTimeout = 30 * time.Second
	// Default description index file
	defaultDescriptionsFile = "/library/.descriptions.db"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// errUsage marks errors caused by malformed command lines.
var errUsage = errors.New("usage")

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stdout)
		return exitUsage
	}

	var err error
	switch args[0] {
	case "read":
		err = readCommand(args[1:], stdout)
	case "write":
		err = writeCommand(args[1:], stdout)
	case "describe":
		err = describeCommand(ctx, args[1:], stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", sanitizeCommand(args[0]))
		printUsage(stdout)
		return exitUsage
	}

	if errors.Is(err, errUsage) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintln(stderr, "Run 'exifedit help' for usage.")
		return exitUsage
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

// sanitizeCommand returns a safe representation of a command string for display.
// Any character that is not alphanumeric, a hyphen, or an underscore becomes '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Image Library Metadata Editor")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: exifedit <command> [flags] <file>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  read <file>                  - Print date taken, dimensions and description")
	fmt.Fprintln(w, "  write [flags] <file>         - Rewrite metadata fields without re-encoding pixels")
	fmt.Fprintln(w, "      -date \"YYYY:MM:DD HH:MM:SS\"  -width N  -height N  -description TEXT  -o DEST")
	fmt.Fprintln(w, "  describe <file> [text]       - Show or set the indexed description")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  DESCRIPTIONS_FILE - Description index file (default: %s)\n", defaultDescriptionsFile)
}

func readCommand(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: read takes exactly one file", errUsage)
	}
	rec, err := metadata.ReadFile(args[0])
	if err != nil {
		return err
	}
	printRecord(stdout, rec)
	return nil
}

func printRecord(w io.Writer, rec metadata.Record) {
	field := func(name, value string) {
		fmt.Fprintf(w, "%-12s %s\n", name+":", value)
	}

	if rec.DateTaken != nil {
		field("Date taken", metadata.FormatTime(*rec.DateTaken))
	} else {
		field("Date taken", "-")
	}
	if rec.Width != nil && rec.Height != nil {
		field("Dimensions", fmt.Sprintf("%dx%d", *rec.Width, *rec.Height))
	} else {
		field("Dimensions", "-")
	}
	if rec.Description != nil {
		field("Description", string(rec.Description))
	} else {
		field("Description", "-")
	}
}

// optionalInt is a flag that records whether it was set.
type optionalInt struct {
	value *int
}

func (o *optionalInt) String() string {
	if o.value == nil {
		return ""
	}
	return fmt.Sprint(*o.value)
}

func (o *optionalInt) Set(s string) error {
	var v int
	if _, err := fmt.Sscan(s, &v); err != nil {
		return err
	}
	o.value = &v
	return nil
}

// optionalString is a flag that records whether it was set.
type optionalString struct {
	value *string
}

func (o *optionalString) String() string {
	if o.value == nil {
		return ""
	}
	return *o.value
}

func (o *optionalString) Set(s string) error {
	o.value = &s
	return nil
}

func writeCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var date, description optionalString
	var width, height optionalInt
	fs.Var(&date, "date", "date taken, "+metadata.TimeLayout)
	fs.Var(&width, "width", "pixel width")
	fs.Var(&height, "height", "pixel height")
	fs.Var(&description, "description", "user comment")
	out := fs.String("o", "", "destination file (default: rewrite in place)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: write takes exactly one file", errUsage)
	}

	src := fs.Arg(0)
	dst := *out
	if dst == "" {
		dst = src
	}

	patch := metadata.Patch{Width: width.value, Height: height.value}
	if date.value != nil {
		t, err := metadata.ParseTime(*date.value)
		if err != nil {
			return fmt.Errorf("%w: date must look like %s", metadata.ErrInvalidValue, metadata.TimeLayout)
		}
		patch.DateTaken = &t
	}
	if description.value != nil {
		patch.Description = []byte(*description.value)
	}

	if err := metadata.RewriteFile(src, dst, patch); err != nil {
		return err
	}

	rec, err := metadata.ReadFile(dst)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s\n", dst)
	printRecord(stdout, rec)
	return nil
}

func describeCommand(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: describe takes a file and an optional text", errUsage)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	file := os.Getenv("DESCRIPTIONS_FILE")
	if file == "" {
		file = defaultDescriptionsFile
	}

	idx := descriptions.New()
	if _, err := idx.Load(ctx, file); err != nil {
		return err
	}

	if len(args) == 1 {
		text, ok := idx.Get(args[0])
		if !ok {
			fmt.Fprintf(stdout, "No description for %s\n", descriptions.Canonical(args[0]))
			return nil
		}
		fmt.Fprintln(stdout, text)
		return nil
	}

	idx.Put(args[0], args[1])
	if err := idx.Save(ctx, file); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Saved description for %s\n", descriptions.Canonical(args[0]))
	return nil
}

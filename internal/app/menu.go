package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"ticketreport/internal/domain"
	"ticketreport/internal/pipeline"
)

// operations is the subset of pipeline.Runner the menu drives.
type operations interface {
	Convert(inputPath, outputPath string) (pipeline.ConvertResult, error)
	Reconcile(sourcePath, targetPath string) (domain.Run, domain.ReconciliationResult, error)
}

type menu struct {
	ops       operations
	outputDir string
	in        io.Reader
	out       io.Writer
}

const menuBanner = `Ticket export to Excel report converter.
Sheet 1: open tickets sorted by SLA age. Sheet 2: technician x SLA pivot, sorted by Grand Total.`

// Loop prompts until the user answers n or input ends. A failed operation
// prints its message and returns to the prompt.
func (m *menu) Loop(ctx context.Context) error {
	scanner := bufio.NewScanner(m.in)
	fmt.Fprintln(m.out, menuBanner)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		answer, ok := m.ask(scanner, "\nDo you want to process a file? (y = convert, r = reconcile remarks, n = quit): ")
		if !ok {
			fmt.Fprintln(m.out, "\nGoodbye!")
			return scanner.Err()
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			m.convert(scanner)
		case "r":
			m.reconcile(scanner)
		case "n", "no", "q":
			fmt.Fprintln(m.out, "Goodbye!")
			return nil
		default:
			fmt.Fprintln(m.out, "Please enter 'y', 'r' or 'n'.")
		}
	}
}

func (m *menu) ask(scanner *bufio.Scanner, prompt string) (string, bool) {
	fmt.Fprint(m.out, prompt)
	if !scanner.Scan() {
		return "", false
	}
	return strings.Trim(strings.TrimSpace(scanner.Text()), `"'`), true
}

func (m *menu) convert(scanner *bufio.Scanner) {
	input, ok := m.ask(scanner, "Path of the CSV file to process: ")
	if !ok || input == "" {
		fmt.Fprintln(m.out, "No file selected. Returning to main menu.")
		return
	}
	def := pipeline.DefaultOutputPath(m.outputDir, input)
	output, ok := m.ask(scanner, fmt.Sprintf("Where to save the Excel file [%s]: ", def))
	if !ok {
		fmt.Fprintln(m.out, "No output file selected. Returning to main menu.")
		return
	}
	if output == "" {
		output = def
	}
	res, err := m.ops.Convert(input, output)
	if err != nil {
		fmt.Fprintln(m.out, describeError(err))
		return
	}
	printConvertResult(m.out, res.Run, res.Digest)
}

func (m *menu) reconcile(scanner *bufio.Scanner) {
	source, ok := m.ask(scanner, "Path of the report to copy remarks from: ")
	if !ok || source == "" {
		fmt.Fprintln(m.out, "No file selected. Returning to main menu.")
		return
	}
	target, ok := m.ask(scanner, "Path of the report to update: ")
	if !ok || target == "" {
		fmt.Fprintln(m.out, "No file selected. Returning to main menu.")
		return
	}
	run, res, err := m.ops.Reconcile(source, target)
	if err != nil {
		fmt.Fprintln(m.out, describeError(err))
		return
	}
	printReconcileResult(m.out, run, res)
}

// describeError turns an operation failure into the message shown to the user.
func describeError(err error) string {
	var verr *domain.ValidationError
	var serr *domain.SchemaError
	var ioerr *domain.IOError
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("Missing columns in input file: %s", strings.Join(verr.Missing, ", "))
	case errors.As(err, &serr):
		return fmt.Sprintf("Cannot reconcile: %s is missing columns: %s", serr.Artifact, strings.Join(serr.Missing, ", "))
	case errors.As(err, &ioerr):
		switch ioerr.Op {
		case "write", "encode", "mkdir":
			return fmt.Sprintf("Failed to save or format the Excel file: %v", err)
		case "backup":
			return fmt.Sprintf("Failed to back up the target file, nothing was changed: %v", err)
		default:
			return fmt.Sprintf("Failed to read the file: %v", err)
		}
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/robert-at-pretension-io/paramgen/internal/diag"
	"github.com/robert-at-pretension-io/paramgen/internal/pipeline"
)

var (
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func severityLabel(severity string) string {
	switch severity {
	case diag.SeverityError:
		return red(severity)
	case diag.SeverityWarning:
		return yellow(severity)
	default:
		return cyan(severity)
	}
}

func statusLabel(status string) string {
	switch status {
	case pipeline.StatusOK:
		return green(status)
	case pipeline.StatusPartial:
		return yellow(status)
	default:
		return red(status)
	}
}

func printDiagnostic(w io.Writer, d diag.Diagnostic) {
	loc := ""
	if d.File != "" {
		loc = filepath.Base(d.File)
		if d.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, d.Line)
		}
		loc += ": "
	}
	subject := ""
	if d.Name != "" {
		subject = fmt.Sprintf(" [%s]", d.Name)
	}
	fmt.Fprintf(w, "    %s%s %s%s: %s\n", loc, severityLabel(d.Severity), d.Kind, subject, d.Message)
}

// printReport lists every module with its status, artifacts and
// diagnostics, followed by the totals
func printReport(w io.Writer, report *pipeline.Report, written bool) {
	for _, o := range report.Outcomes {
		fmt.Fprintf(w, "%s %s (%d parameters)\n", o.Module, statusLabel(o.Status), len(o.Params))
		for _, a := range o.Artifacts {
			path := a.Path
			if written {
				path = report.ArtifactPath(o, a)
			}
			fmt.Fprintf(w, "  %s %s\n", faint(a.Kind), path)
		}
		for _, d := range o.Diagnostics {
			printDiagnostic(w, d)
		}
	}
	s := report.Summary
	fmt.Fprintf(w, "\n%d module(s), %d error(s), %d warning(s), %d info\n",
		len(report.Outcomes), s.Errors, s.Warnings, s.Info)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nanoncore/nano-onulocator/types"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatLevel(dbm float64) string {
	if dbm == types.OpticalSentinel {
		return "unreadable"
	}
	return fmt.Sprintf("%.2f dBm", dbm)
}

func printResult(w io.Writer, r *types.LocateResult, broad bool) error {
	if app.jsonOutput {
		return printJSON(w, r)
	}

	d := r.Diagnostics
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Serial:\t%s\n", r.Serial)
	fmt.Fprintf(tw, "OLT:\t%s (%s)\n", r.Location.DeviceName, r.Location.DeviceAddress)
	fmt.Fprintf(tw, "Interface:\t%s\n", r.Location.Interface)
	fmt.Fprintf(tw, "Status:\t%s [%s] (%s)\n", d.Description, d.Color, d.Status)
	fmt.Fprintf(tw, "Name:\t%s\n", d.Name)
	fmt.Fprintf(tw, "Distance:\t%s\n", d.Distance)
	fmt.Fprintf(tw, "Uptime:\t%s\n", d.Uptime)
	fmt.Fprintf(tw, "Rx ONU:\t%s\n", formatLevel(d.Signals.RxONU))
	fmt.Fprintf(tw, "Rx OLT:\t%s\n", formatLevel(d.Signals.RxOLT))
	if broad {
		fmt.Fprintf(tw, "Tx ONU:\t%s\n", formatLevel(d.Signals.TxONU))
		fmt.Fprintf(tw, "Tx OLT:\t%s\n", formatLevel(d.Signals.TxOLT))
	}
	return tw.Flush()
}

func printReplies(w io.Writer, replies []types.Reply) error {
	if app.jsonOutput {
		return printJSON(w, replies)
	}
	for _, r := range replies {
		fmt.Fprintf(w, "# %s\n%s\n\n", r.Command, r.Output)
	}
	return nil
}

func printTargets(w io.Writer, targets []types.Target) error {
	if app.jsonOutput {
		return printJSON(w, targets)
	}
	if len(targets) == 0 {
		fmt.Fprintln(w, "No OLTs in the inventory")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tVENDOR\tPROTOCOL\tPORT\tCREDENTIALS")
	for _, t := range targets {
		creds := "default"
		if t.Username != "" && t.Password != "" {
			creds = "own"
		}
		port := "-"
		if t.Port != 0 {
			port = fmt.Sprint(t.Port)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", t.Name, t.Address, orDash(string(t.Vendor)), orDash(string(t.Protocol)), port, creds)
	}
	return tw.Flush()
}

func printStatuses(w io.Writer, entries []types.StatusEntry) error {
	if app.jsonOutput {
		return printJSON(w, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No status codes defined")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tDESCRIPTION\tCOLOR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Code, e.Description, e.Color)
	}
	return tw.Flush()
}

func printEvents(w io.Writer, events []types.AuditEvent) error {
	if app.jsonOutput {
		return printJSON(w, events)
	}
	if len(events) == 0 {
		fmt.Fprintln(w, "No audit events found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tOPERATOR\tACTION\tDETAILS")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Operator, e.Action, e.Details)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

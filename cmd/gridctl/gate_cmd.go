package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/consoleworks/gridcore/pkg/capability"
)

// runGateCmd implements `gridctl gate`: resolve a capability gate from
// a document file, for scripting and support diagnosis.
//
// Exit codes:
//
//	0 = surface enabled
//	1 = surface hidden or disabled
//	2 = setup error
func runGateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("gate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		docFile string
		module  string
		action  string
	)
	cmd.StringVar(&docFile, "doc", "", "Capability document file (REQUIRED)")
	cmd.StringVar(&module, "module", "", "Module name (REQUIRED)")
	cmd.StringVar(&action, "action", "", "Action inside the module; omitted resolves the nav entry")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if docFile == "" || module == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --doc and --module are required")
		return 2
	}

	raw, err := os.ReadFile(docFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	snap, err := capability.Parse(raw)
	if err != nil {
		// The snapshot is usable either way: it failed closed.
		_, _ = fmt.Fprintf(stderr, "Warning: %v\n", err)
	}

	var d capability.Decision
	if action == "" {
		d = snap.GateNavItem(module)
	} else {
		d = snap.GateAction(module, action)
	}

	out := map[string]any{
		"profile": snap.Profile,
		"module":  module,
		"visible": d.Visible,
		"enabled": d.Enabled,
	}
	if action != "" {
		out["action"] = action
	}
	if d.ReasonCode != "" {
		out["reason_code"] = d.ReasonCode
	}
	if d.Reason != "" {
		out["reason"] = d.Reason
	}
	if d.Permission != "" {
		out["permission"] = d.Permission
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return 2
	}
	if !d.Enabled {
		return 1
	}
	return 0
}

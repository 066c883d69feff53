package telemetry

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const consentPrompt = `
Help improve PlanWing?

PlanWing can send anonymous usage events (for example "task moved" or
"week closed") together with your OS and architecture. Task notes, names,
ids and server addresses are never sent.

Change this later in .planwing.yaml (telemetry.enabled).
`

// PromptForConsent asks the user and saves the answer. Non-interactive
// sessions are recorded as declined without asking.
func PromptForConsent(in io.Reader, out io.Writer, interactive bool) (bool, error) {
	cfg, err := Load()
	if err != nil {
		return false, err
	}

	enabled := false
	if interactive {
		fmt.Fprint(out, consentPrompt)
		fmt.Fprint(out, "\nEnable anonymous telemetry? [y/N] ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err == nil || err == io.EOF {
			answer := strings.TrimSpace(strings.ToLower(line))
			enabled = answer == "y" || answer == "yes"
		}
	}

	if enabled {
		cfg.Enable()
		fmt.Fprintln(out, "Telemetry enabled. Thank you!")
	} else {
		cfg.Disable()
		if interactive {
			fmt.Fprintln(out, "Telemetry disabled.")
		}
	}
	return enabled, cfg.Save()
}

// CheckAndPromptConsent prompts on stdin only if the user was never asked.
func CheckAndPromptConsent() (bool, error) {
	cfg, err := Load()
	if err != nil {
		return false, err
	}
	if !cfg.NeedsConsent() {
		return cfg.IsEnabled(), nil
	}
	return PromptForConsent(os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
}

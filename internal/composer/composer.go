// Package composer turns the leg ledger into text: the session context handed
// to the call navigator before each call, and the final summary document a
// completed job returns.
package composer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kalambet/ivrmap/internal/ledger"
	"github.com/kalambet/ivrmap/internal/planner"
)

// SessionContext builds the instruction block the AI navigator receives when
// a call is placed: the target path to explore and everything already known
// about the tree, so the navigator does not re-document explored branches.
func SessionContext(legs []ledger.Leg, targetPath, phoneNumber string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are mapping the phone menu system at %s.\n", phoneNumber)
	if targetPath == planner.RootPath {
		sb.WriteString("Target: the top-level menu. Dial in, listen to the full prompt, and document every announced option without pressing anything beyond what is needed to hear the complete menu.\n")
	} else {
		fmt.Fprintf(&sb, "Target: menu path %s. Dial in and press the digits %s in order, waiting for each menu prompt to finish before the next keypress. Document the menu you reach and how the call ends.\n",
			targetPath, strings.ReplaceAll(targetPath, "-", ", "))
	}
	fmt.Fprintf(&sb, "Record your findings as leg number %d.\n", ledger.MaxLegNumber(legs)+1)

	if len(legs) == 0 {
		sb.WriteString("\nNothing has been explored yet. This is the first call.\n")
		return sb.String()
	}

	sb.WriteString("\n[Explored so far]\n")
	for _, leg := range legs {
		fmt.Fprintf(&sb, "- leg %d, path %s (%s): %s\n", leg.LegNumber, leg.Path, leg.Status, leg.FinalOutcome)
	}
	return sb.String()
}

// Summary folds the full ledger into a human-readable map of the discovered
// tree, grouped by path in canonical order, with the transcript, announced
// options, and outcome of each leg.
func Summary(legs []ledger.Leg) string {
	if len(legs) == 0 {
		return "No menu structure was discovered: the ledger is empty.\n"
	}

	byPath := make(map[string][]ledger.Leg)
	for _, leg := range legs {
		byPath[leg.Path] = append(byPath[leg.Path], leg)
	}

	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		di, dj := planner.Depth(paths[i]), planner.Depth(paths[j])
		if di != dj {
			return di < dj
		}
		return paths[i] < paths[j]
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "IVR menu map — %d legs across %d paths\n", len(legs), len(paths))

	for _, p := range paths {
		fmt.Fprintf(&sb, "\n## Path %s\n", p)
		for _, leg := range byPath[p] {
			fmt.Fprintf(&sb, "Leg %d (%s, explored %s)\n", leg.LegNumber, leg.Status, leg.ExplorationDate.Format("2006-01-02 15:04"))
			for _, menu := range leg.MenuSequence {
				fmt.Fprintf(&sb, "  Menu %s: %s\n", menu.MenuID, menu.AudioTranscript)
				for i, opt := range menu.AvailableOptions {
					fmt.Fprintf(&sb, "    %d. %s\n", i+1, opt)
				}
			}
			fmt.Fprintf(&sb, "  Outcome: %s\n", leg.FinalOutcome)
		}
	}

	return sb.String()
}

// Command replay re-folds recorded sessions and checks that every stored
// snapshot matches the world the frames produce today.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/brensch/tankbot/game"
	"github.com/brensch/tankbot/rules"
	"github.com/brensch/tankbot/session"
	"github.com/brensch/tankbot/store"
)

func main() {
	dir := flag.String("dir", "recordings", "Directory holding parquet recordings")
	sessionID := flag.String("session", "", "Only replay this session")
	logPath := flag.String("session-log", "", "Session index; used to find the batches of -session")
	onViolation := flag.String("on-violation", "skip", "Violation policy used while replaying: skip or abort")
	showGrid := flag.Bool("grid", true, "Print the final grid of each session")
	flag.Parse()

	policy, err := rules.ParsePolicy(*onViolation)
	if err != nil {
		log.Fatalf("%v", err)
	}

	paths, err := batchPaths(*dir, *logPath, *sessionID)
	if err != nil {
		log.Fatalf("Failed to find recordings: %v", err)
	}
	if len(paths) == 0 {
		log.Printf("No recordings found in %s", *dir)
		return
	}

	sessions := make(map[string][]store.FrameRow)
	for _, p := range paths {
		rows, err := store.ReadFrames(p)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", p, err)
		}
		for _, r := range rows {
			if *sessionID != "" && r.SessionID != *sessionID {
				continue
			}
			sessions[r.SessionID] = append(sessions[r.SessionID], r)
		}
	}

	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	mismatches := 0
	for _, id := range ids {
		rows := sessions[id]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
		n, err := replay(rows, rules.Transitioner{Policy: policy}, *showGrid)
		mismatches += n
		if err != nil {
			log.Printf("Session %s: %v", id, err)
			mismatches++
		}
	}

	log.Printf("Replayed %d sessions from %d batches, %d mismatches", len(ids), len(paths), mismatches)
	if mismatches > 0 {
		os.Exit(1)
	}
}

func batchPaths(dir, logPath, sessionID string) ([]string, error) {
	if logPath != "" && sessionID != "" {
		index, err := store.OpenSessionLog(logPath)
		if err != nil {
			return nil, err
		}
		defer index.Close()
		if index.Has(sessionID) {
			return index.Batches(sessionID), nil
		}
		log.Printf("Session %s not in %s, scanning %s", sessionID, logPath, dir)
	}
	return store.ListRecordings(dir)
}

// replay folds the frames of one session and counts rows whose stored
// snapshot differs from the folded world.
func replay(rows []store.FrameRow, tr rules.Transitioner, showGrid bool) (int, error) {
	sess := session.New(tr, nil)
	mismatches := 0
	frames := 0
	for _, r := range rows {
		if r.Frame == "" {
			continue
		}
		frames++
		_, stepErr := sess.Step(r.Frame)
		if stepErr != nil {
			log.Printf("Session %s seq %d: %q failed: %v", r.SessionID, r.Seq, r.Frame, stepErr)
		}
		if got := errText(stepErr); got != r.Error {
			mismatches++
			log.Printf("Session %s seq %d: recorded error %q, replayed %q", r.SessionID, r.Seq, r.Error, got)
		}

		want, err := store.DecodeSnapshot(r.State)
		if err != nil {
			return mismatches, fmt.Errorf("seq %d: decode snapshot: %w", r.Seq, err)
		}
		got := sess.World()
		if !got.Equal(want) {
			mismatches++
			log.Printf("Session %s seq %d: world differs after %q", r.SessionID, r.Seq, r.Frame)
			for _, c := range game.Diff(want, got) {
				log.Printf("  %s: recorded %s, replayed %s", c.Point, describe(c.Before), describe(c.After))
			}
		}
	}

	fmt.Printf("== %s: %d frames, %d mismatches\n", rows[0].SessionID, frames, mismatches)
	if w := sess.World(); showGrid && w != nil {
		fmt.Print(w.Render())
	}
	return mismatches, nil
}

func describe(o game.Occupant) string {
	if o == nil {
		return "empty"
	}
	return fmt.Sprintf("%s %c", o.Kind(), game.Glyph(o))
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

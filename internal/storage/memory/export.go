// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tidewatch/battlecore/internal/config"
	"github.com/tidewatch/battlecore/pkg/core"
)

// ExportVersion is the battle report format version.
const ExportVersion = 1

// BattleExport is the root JSON structure of a battle report
type BattleExport struct {
	Version            int           `json:"version"`
	SessionID          string        `json:"sessionId"`
	Objective          string        `json:"objective"`
	StartedAt          time.Time     `json:"startedAt"`
	EndedAt            time.Time     `json:"endedAt"`
	Turns              int           `json:"turns"`
	Outcome            string        `json:"outcome"`
	Winner             string        `json:"winner"`
	ObjectiveCompleted bool          `json:"objectiveCompleted"`
	Participants       []string      `json:"participants"`
	Rewards            []core.Reward `json:"rewards"`
	// Events rows are [turn, type, actorId, targetId, damage, message]
	Events [][]any `json:"events"`
}

// exportJSON writes the battle to a (optionally gzipped) JSON file
func (b *Backend) exportJSON(log *BattleLog) error {
	path, err := WriteExport(b.cfg, log)
	if err != nil {
		return err
	}
	b.lastExportPath = path
	return nil
}

// WriteExport writes a battle report into cfg.OutputDir and returns its path.
func WriteExport(cfg config.MemoryConfig, log *BattleLog) (string, error) {
	export := buildExport(log)

	name := sanitize(log.Record.SessionID)
	timestamp := log.Record.StartedAt.Format("20060102_150405")

	var filename string
	if cfg.CompressOutput {
		filename = fmt.Sprintf("battle_%s_%s.json.gz", name, timestamp)
	} else {
		filename = fmt.Sprintf("battle_%s_%s.json", name, timestamp)
	}

	outputPath := filepath.Join(cfg.OutputDir, filename)

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return "", err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return "", err
		}
	}
	return outputPath, nil
}

func buildExport(log *BattleLog) BattleExport {
	rec := log.Record
	export := BattleExport{
		Version:            ExportVersion,
		SessionID:          rec.SessionID,
		Objective:          rec.Objective,
		StartedAt:          rec.StartedAt,
		EndedAt:            rec.EndedAt,
		Turns:              rec.Turns,
		Outcome:            rec.Outcome,
		Winner:             string(rec.Winner),
		ObjectiveCompleted: rec.ObjectiveCompleted,
		Participants:       append([]string{}, rec.Participants...),
		Rewards:            append([]core.Reward{}, rec.Rewards...),
		Events:             make([][]any, 0, len(log.Events)),
	}

	events := append([]core.BattleEvent{}, log.Events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].Turn < events[j].Turn })
	for _, e := range events {
		export.Events = append(export.Events, []any{
			e.Turn,
			string(e.Type),
			e.ActorID,
			e.TargetID,
			e.Damage,
			e.Message,
		})
	}
	return export
}

func (b *Backend) writePlayers() error {
	players := make([]PlayerRecord, 0, len(b.players))
	for _, p := range b.players {
		players = append(players, *p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].PlayerID < players[j].PlayerID })

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(b.cfg.OutputDir, "players.json")
	tmp := path + ".tmp"
	if err := writeJSON(tmp, players); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace players file: %w", err)
	}
	return nil
}

func writeJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}

func sanitize(s string) string {
	r := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")
	return r.Replace(s)
}

package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func newDBCmd() *cobra.Command {
	var (
		dataDir string
		dbPath  string
		agentID string
		limit   int
	)
	cmd := &cobra.Command{
		Use:       "db [directives|outcomes|rejections|catalogs]",
		Short:     "Query the sqlite index directly",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"directives", "outcomes", "rejections", "catalogs"},
		RunE: func(cmd *cobra.Command, args []string) error {
			q := "directives"
			if len(args) > 0 {
				q = strings.TrimSpace(args[0])
			}
			path := strings.TrimSpace(dbPath)
			if path == "" {
				path = filepath.Join(dataDir, "index", "autoequip.sqlite")
			}
			db, err := sql.Open("sqlite", path)
			if err != nil {
				return fmt.Errorf("open: %w", err)
			}
			defer db.Close()
			return runQuery(db, cmd.OutOrStdout(), q, agentID, limit)
		},
	}
	cmd.Flags().StringVar(&dataDir, "data", "./data", "runtime data directory")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite db path (default <data>/index/autoequip.sqlite)")
	cmd.Flags().StringVar(&agentID, "agent", "", "agent_id filter (directives)")
	cmd.Flags().IntVar(&limit, "limit", 20, "result limit")
	return cmd
}

func runQuery(db *sql.DB, out io.Writer, q, agentID string, limit int) error {
	if limit <= 0 {
		limit = 20
	}
	switch q {
	case "directives":
		query := `SELECT tick,agent_id,weapon_id,map_id,slot,slot_index,COALESCE(displaced_id,''),score,displaced_score FROM directives ORDER BY tick DESC, id DESC LIMIT ?`
		args := []any{limit}
		if strings.TrimSpace(agentID) != "" {
			query = `SELECT tick,agent_id,weapon_id,map_id,slot,slot_index,COALESCE(displaced_id,''),score,displaced_score FROM directives WHERE agent_id=? ORDER BY tick DESC, id DESC LIMIT ?`
			args = []any{strings.TrimSpace(agentID), limit}
		}
		rows, err := db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick           uint64  `json:"tick"`
				AgentID        string  `json:"agent_id"`
				WeaponID       string  `json:"weapon_id"`
				MapID          string  `json:"map_id"`
				Slot           string  `json:"slot"`
				SlotIndex      int     `json:"slot_index"`
				DisplacedID    string  `json:"displaced_id,omitempty"`
				Score          float64 `json:"score"`
				DisplacedScore float64 `json:"displaced_score"`
			}
			if err := rows.Scan(&r.Tick, &r.AgentID, &r.WeaponID, &r.MapID, &r.Slot, &r.SlotIndex, &r.DisplacedID, &r.Score, &r.DisplacedScore); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	case "outcomes", "rejections":
		key := "reason"
		if q == "rejections" {
			key = "code"
		}
		rows, err := db.Query(fmt.Sprintf(`SELECT %s,count FROM %s ORDER BY count DESC, %s`, key, q, key))
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Key   string `json:"key"`
				Count int64  `json:"count"`
			}
			if err := rows.Scan(&r.Key, &r.Count); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(out, r)
		}
		return rows.Err()

	default:
		return fmt.Errorf("unknown query %q (want directives|outcomes|rejections|catalogs)", q)
	}
}

func printJSON(out io.Writer, v any) {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

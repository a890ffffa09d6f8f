package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const outcomeDirective = "DIRECTIVE"

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertDirective, _ := s.db.Prepare(`INSERT INTO directives(tick,agent_id,weapon_id,map_id,slot,slot_index,displaced_id,score,displaced_score,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	bumpOutcome, _ := s.db.Prepare(`INSERT INTO outcomes(reason,count) VALUES(?,1) ON CONFLICT(reason) DO UPDATE SET count=count+1`)
	bumpRejection, _ := s.db.Prepare(`INSERT INTO rejections(code,count) VALUES(?,1) ON CONFLICT(code) DO UPDATE SET count=count+1`)
	defer func() {
		for _, st := range []*sql.Stmt{insertDirective, bumpOutcome, bumpRejection} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)
	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
	}

	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return true
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for {
		select {
		case <-ticker.C:
			commit()
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			if r.kind == reqSync {
				commit()
				close(r.done)
				continue
			}
			begin()
			if tx == nil {
				continue
			}
			ev := r.eval
			outcome := ev.Reason
			if d := ev.Directive; d != nil {
				outcome = outcomeDirective
				raw, _ := json.Marshal(d)
				if !exec(insertDirective, int64(d.Tick), d.AgentID, d.WeaponID, d.MapID, string(d.Slot), d.SlotIndex, d.DisplacedID, d.Score, d.DisplacedScore, string(raw)) {
					continue
				}
			}
			if outcome != "" && !exec(bumpOutcome, outcome) {
				continue
			}
			failed := false
			for _, rej := range ev.Rejected {
				if !exec(bumpRejection, rej.Code) {
					failed = true
					break
				}
			}
			if failed {
				continue
			}
			s.written.Add(1)
			if opCount >= commitEvery {
				commit()
			}
		}
	}
}

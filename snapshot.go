package main

import "sort"

// The snapshot is the only shape any viewer ever sees; the raw Room never
// crosses the wire. It is recomputed per viewer on every broadcast, so
// redaction can never go stale.

type ParticipantView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	IsArchitect  bool   `json:"isArchitect"`
	HasSubmitted bool   `json:"hasSubmitted"`
}

type TargetView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Grid Grid   `json:"grid"` // nil while hidden
}

type ScoreEntry struct {
	ParticipantID string    `json:"participantId"`
	Score         int       `json:"score"`
	Stats         DiffStats `json:"stats"`
	SubmittedAt   int64     `json:"submittedAt"` // unix ms
}

type ScoreBoard struct {
	Count    int          `json:"count"`
	Best     *ScoreEntry  `json:"best"`
	BestGrid Grid         `json:"bestGrid"` // host only, reveal/reflect only
	Avg      *int         `json:"avg"`
	Top      []ScoreEntry `json:"top"`
}

type ReflectionView struct {
	Rules []string `json:"rules"`
}

type RoomStateView struct {
	Code             string            `json:"code"`
	Phase            Phase             `json:"phase"`
	RoundIndex       int               `json:"roundIndex"`
	RoundEndsAt      *int64            `json:"roundEndsAt"` // unix ms, null outside round
	RoundDurationSec int               `json:"roundDurationSec"`
	Constraints      Constraints       `json:"constraints"`
	Target           TargetView        `json:"target"`
	Participants     []ParticipantView `json:"participants"`
	ArchitectID      *string           `json:"architectId"`
	Scores           ScoreBoard        `json:"scores"`
	Reflection       ReflectionView    `json:"reflection"`
}

// buildSnapshot projects a room into what one viewer is allowed to see.
// The target grid is hidden from everyone but the host and the architect
// while a round is running; other builders' grids are never shown
// mid-round. Pure: same room and viewer always yield the same view.
func buildSnapshot(room *Room, viewerID string) RoomStateView {
	viewer := room.participants[viewerID]
	isHost := viewer != nil && viewer.Role == RoleHost
	isArchitect := viewerID != "" && room.architectID == viewerID
	canSeeTarget := room.phase != PhaseRound || isHost || isArchitect

	participants := make([]ParticipantView, 0, len(room.joinOrder))
	for _, pid := range room.joinOrder {
		p, ok := room.participants[pid]
		if !ok {
			continue
		}
		_, submitted := room.submissions[pid]
		participants = append(participants, ParticipantView{
			ID:           p.ID,
			Name:         p.Name,
			Role:         p.Role,
			IsArchitect:  p.ID == room.architectID,
			HasSubmitted: room.phase == PhaseRound && submitted,
		})
	}

	target := TargetView{ID: "HIDDEN", Name: "Hidden"}
	if canSeeTarget {
		t := room.target()
		target = TargetView{ID: t.ID, Name: t.Name, Grid: t.Grid}
	}

	var architectID *string
	if room.architectID != "" {
		id := room.architectID
		architectID = &id
	}

	var roundEndsAt *int64
	if !room.roundEndsAt.IsZero() {
		ms := room.roundEndsAt.UnixMilli()
		roundEndsAt = &ms
	}

	return RoomStateView{
		Code:             room.code,
		Phase:            room.phase,
		RoundIndex:       room.roundIndex,
		RoundEndsAt:      roundEndsAt,
		RoundDurationSec: room.roundDurationSec,
		Constraints:      room.constraints,
		Target:           target,
		Participants:     participants,
		ArchitectID:      architectID,
		Scores:           buildScoreBoard(room, isHost),
		Reflection:       ReflectionView{Rules: room.rules},
	}
}

// buildScoreBoard aggregates current-round submissions only. Individual
// grids stay hidden; the best grid is attached for the host once the
// round is over, to drive the reveal discussion.
func buildScoreBoard(room *Room, isHost bool) ScoreBoard {
	entries := make([]ScoreEntry, 0, len(room.submissions))
	for pid, sub := range room.submissions {
		if sub.RoundIndex != room.roundIndex {
			continue
		}
		entries = append(entries, ScoreEntry{
			ParticipantID: pid,
			Score:         sub.Score,
			Stats:         sub.Stats,
			SubmittedAt:   sub.SubmittedAt.UnixMilli(),
		})
	}

	// Highest score first; earlier submission wins ties.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].SubmittedAt < entries[j].SubmittedAt
	})

	board := ScoreBoard{
		Count: len(entries),
		Top:   entries,
	}
	if len(board.Top) > 5 {
		board.Top = board.Top[:5]
	}

	if len(entries) > 0 {
		best := entries[0]
		board.Best = &best

		sum := 0
		for _, e := range entries {
			sum += e.Score
		}
		avg := (sum + len(entries)/2) / len(entries)
		board.Avg = &avg

		revealed := room.phase == PhaseReveal || room.phase == PhaseReflect
		if isHost && revealed {
			if sub, ok := room.submissions[best.ParticipantID]; ok {
				board.BestGrid = sub.Grid
			}
		}
	}

	return board
}

package main

// Target is one pattern from the built-in library. Architects describe it,
// builders reconstruct it.
type Target struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Grid Grid   `json:"grid"`
}

var targets = []Target{
	{
		ID:   "T1",
		Name: "Bridge",
		Grid: Grid{
			{"E", "E", "B", "E", "E"},
			{"E", "B", "B", "B", "E"},
			{"B", "B", "Y", "B", "B"},
			{"E", "B", "B", "B", "E"},
			{"E", "E", "B", "E", "E"},
		},
	},
	{
		ID:   "T2",
		Name: "Dialogue",
		Grid: Grid{
			{"E", "G", "G", "E", "E"},
			{"G", "E", "G", "E", "E"},
			{"G", "G", "G", "E", "E"},
			{"E", "E", "E", "R", "R"},
			{"E", "E", "E", "R", "E"},
		},
	},
	{
		ID:   "T3",
		Name: "Team",
		Grid: Grid{
			{"Y", "E", "Y", "E", "Y"},
			{"E", "Y", "E", "Y", "E"},
			{"Y", "E", "Y", "E", "Y"},
			{"E", "Y", "E", "Y", "E"},
			{"Y", "E", "Y", "E", "Y"},
		},
	},
	{
		ID:   "T4",
		Name: "Tower",
		Grid: Grid{
			{"E", "E", "R", "E", "E"},
			{"E", "R", "R", "R", "E"},
			{"R", "R", "R", "R", "R"},
			{"E", "E", "R", "E", "E"},
			{"E", "E", "R", "E", "E"},
		},
	},
	{
		ID:   "T5",
		Name: "Signal",
		Grid: Grid{
			{"E", "E", "E", "G", "E"},
			{"E", "E", "G", "G", "E"},
			{"E", "G", "G", "G", "E"},
			{"G", "G", "G", "G", "E"},
			{"E", "E", "E", "E", "E"},
		},
	},
	{
		ID:   "T6",
		Name: "Funnel",
		Grid: Grid{
			{"B", "E", "E", "E", "B"},
			{"E", "B", "E", "B", "E"},
			{"E", "E", "Y", "E", "E"},
			{"E", "G", "E", "G", "E"},
			{"R", "E", "E", "E", "R"},
		},
	},
	{
		ID:   "T7",
		Name: "Lattice",
		Grid: Grid{
			{"G", "E", "G", "E", "G"},
			{"E", "E", "E", "E", "E"},
			{"G", "E", "Y", "E", "G"},
			{"E", "E", "E", "E", "E"},
			{"G", "E", "G", "E", "G"},
		},
	},
	{
		ID:   "T8",
		Name: "Loop",
		Grid: Grid{
			{"E", "B", "B", "B", "E"},
			{"B", "E", "E", "E", "B"},
			{"B", "E", "Y", "E", "B"},
			{"B", "E", "E", "E", "B"},
			{"E", "B", "B", "B", "E"},
		},
	},
}

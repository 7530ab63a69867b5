package soul

// projection maps a trait to descriptor phrases through non-overlapping
// threshold buckets: above high, one phrase; below low, the opposite;
// between them, silence.
type projection struct {
	trait Trait
	high  int
	low   int
	above string
	below string
}

var projections = []projection{
	{TraitSociability, 70, 35, "outgoing and quick to chat", "reserved, happiest on the edges of a crowd"},
	{TraitCuriosity, 70, 35, "endlessly curious about everything", "content with the familiar"},
	{TraitDiligence, 70, 35, "hardworking to a fault", "unhurried, easily sidetracked"},
	{TraitCheer, 70, 35, "sunny and optimistic", "a little melancholy"},
	{TraitBravery, 70, 35, "bold, first through any door", "cautious and careful"},
	{TraitPatience, 70, 35, "calm and very patient", "restless, quick to act"},
}

// Project maps trait values to qualitative descriptor phrases. Pure and
// order-stable: the same soul always yields the same slice in the same
// order.
func Project(s *Soul) []string {
	var out []string
	for _, p := range projections {
		v := s.Get(p.trait)
		switch {
		case v > p.high:
			out = append(out, p.above)
		case v < p.low:
			out = append(out, p.below)
		}
	}
	return out
}

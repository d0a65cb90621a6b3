package testutil

// FixedRunIDGenerator generates the same run id every time.
//
// Recording the same scenario with a FixedRunIDGenerator produces
// byte-identical trace output.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id. An empty id yields
// "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}

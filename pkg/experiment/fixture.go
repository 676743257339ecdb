package experiment

// Fixture is a fully linked record set for exercising read paths and the
// runner callback without running a pipeline.
type Fixture struct {
	Experiment *Experiment
	Control    *Variant
	Agent      *Agent
	CodeAgent  *CodeAgent
}

// SeedFixture inserts one experiment with a control variant, an agent, and a
// pending code agent, all wired together by foreign keys.
func SeedFixture(s *Store) (*Fixture, error) {
	exp, err := s.CreateExperiment("https://github.com/acme/storefront", "increase checkout conversions")
	if err != nil {
		return nil, err
	}
	control, err := s.CreateVariant(exp.ID, "sb-control", "https://3000-sb-control.proxy.test", VariantControl, nil)
	if err != nil {
		return nil, err
	}
	agent, err := s.CreateAgent(exp.ID, control.ID, "Explore the storefront and attempt a full checkout.")
	if err != nil {
		return nil, err
	}
	codeAgent, err := s.CreateCodeAgent(exp.ID, control.ID, "sb-variant",
		"add persistent cart badge", "Implement the following improvement with minimal changes.")
	if err != nil {
		return nil, err
	}
	return &Fixture{Experiment: exp, Control: control, Agent: agent, CodeAgent: codeAgent}, nil
}

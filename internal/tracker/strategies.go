package tracker

// StrategyOther selects a free-text strategy.
const StrategyOther = "other"

// MaxCustomStrategyLen bounds the free text of StrategyOther.
const MaxCustomStrategyLen = 50

type Strategy struct {
	Key         string
	Label       string
	Description string
}

// Strategies is the catalogue of behavior-change strategies, excluding
// StrategyOther.
var Strategies = []Strategy{
	{
		Key:         "environment",
		Label:       "Design your environment",
		Description: "Arrange your surroundings so the action is the easy default: lay out the tools, remove the distractions.",
	},
	{
		Key:         "start_cost",
		Label:       "Lower the start cost",
		Description: "Shrink the first step until it takes almost no effort, such as opening the book or putting on shoes.",
	},
	{
		Key:         "precommitment",
		Label:       "Precommit",
		Description: "Decide in advance when and where you will act, and make backing out harder than following through.",
	},
	{
		Key:         "immediate_reward",
		Label:       "Add an immediate reward",
		Description: "Pair the action with something you enjoy right away so the payoff is not only in the distant future.",
	},
	{
		Key:         "self_image",
		Label:       "Act on your self-image",
		Description: "Frame the action as who you are, not what you must do: a reader reads, a runner runs.",
	},
}

// LookupStrategy returns the catalogue entry for key.
func LookupStrategy(key string) (Strategy, bool) {
	for _, s := range Strategies {
		if s.Key == key {
			return s, true
		}
	}
	return Strategy{}, false
}

// StrategyLabel is the display text for a persisted strategy. Custom
// strategies are stored as their own text.
func StrategyLabel(strategy string) string {
	if s, ok := LookupStrategy(strategy); ok {
		return s.Label
	}
	return strategy
}

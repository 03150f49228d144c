package types

import (
	"strings"
)

// Scenario is a topic tag selecting the opening context of a session.
// A non-empty scenario on a chat request signals "begin a new session",
// replacing any history already held under the same session id.
type Scenario string

const (
	ScenarioNone       Scenario = ""
	ScenarioIntro      Scenario = "INTRO"
	ScenarioCafe       Scenario = "CAFE"
	ScenarioRestaurant Scenario = "RESTAURANT"
	ScenarioTravel     Scenario = "TRAVEL"
	ScenarioShopping   Scenario = "SHOPPING"
	ScenarioDirections Scenario = "DIRECTIONS"
	ScenarioFreeTalk   Scenario = "FREE_TALK"
)

var scenarioTopics = map[Scenario]string{
	ScenarioIntro:      "introducing yourselves and getting to know each other",
	ScenarioCafe:       "ordering drinks and chatting at a café",
	ScenarioRestaurant: "ordering a meal at a restaurant",
	ScenarioTravel:     "planning a trip and talking about travel",
	ScenarioShopping:   "shopping for clothes and asking about prices",
	ScenarioDirections: "asking for and giving directions in a city",
	ScenarioFreeTalk:   "an open conversation about anything the student likes",
}

// ResolveScenario validates a scenario string. The empty string resolves to
// ScenarioNone, meaning "continue the current session".
func ResolveScenario(s string) (Scenario, bool) {
	if s == "" {
		return ScenarioNone, true
	}
	upper := Scenario(strings.ToUpper(s))
	if _, ok := scenarioTopics[upper]; ok {
		return upper, true
	}
	return ScenarioNone, false
}

// Topic returns the human-readable topic used in the opening instruction.
func (s Scenario) Topic() string {
	return scenarioTopics[s]
}

package logging

import (
	"encoding/json"
	"testing"

	"go.viam.com/test"
)

func TestLevelStrings(t *testing.T) {
	for _, level := range []Level{DEBUG, INFO, WARN, ERROR} {
		parsed, err := LevelFromString(level.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, level)
	}

	parsed, err := LevelFromString("warning")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed, test.ShouldEqual, WARN)
}

func TestJSONRoundTrip(t *testing.T) {
	type allLevels struct {
		Debug Level
		Info  Level
		Warn  Level
		Error Level
	}

	levels := allLevels{DEBUG, INFO, WARN, ERROR}

	data, err := json.Marshal(levels)
	test.That(t, err, test.ShouldBeNil)

	var parsed allLevels
	err = json.Unmarshal(data, &parsed)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed, test.ShouldResemble, levels)
}

func TestLevelFromStringInvalid(t *testing.T) {
	_, err := LevelFromString("not a level")
	test.That(t, err, test.ShouldNotBeNil)
}

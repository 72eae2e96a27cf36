package automation

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// decode parses normalized output for structural assertions.
func decode(t *testing.T, text string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := yaml.Unmarshal([]byte(text), &m); err != nil {
		t.Fatalf("output is not valid YAML: %v\n%s", err, text)
	}
	return m
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "id: a\n", "id: a"},
		{"yaml fence", "```yaml\nid: a\n```", "id: a"},
		{"yml fence", "```yml\nid: a\n```\n", "id: a"},
		{"bare fence", "```\nid: a\n```", "id: a"},
		{"surrounding space", "\n\n  ```yaml\nid: a\nalias: b\n```  \n", "id: a\nalias: b"},
		{"unterminated fence", "```yaml\nid: a", "id: a"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanResponse(tt.in); got != tt.want {
				t.Errorf("CleanResponse() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalize_AddsIDAndPluralKeys(t *testing.T) {
	in := `alias: Sunset lights
trigger:
  platform: sun
  event: sunset
condition:
  - condition: state
    entity_id: input_boolean.guest_mode
    state: "off"
action:
  - service: light.turn_on
    entity_id: light.living_room
`
	got, err := Normalize(in, NormalizeOptions{Description: "Turn on lights at sunset!", Now: testNow})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	wantID := "ai_automation_turn_on_lights_at_sunset_20240101120000"
	if got.ID != wantID {
		t.Errorf("ID = %q, want %q", got.ID, wantID)
	}
	if got.Alias != "Sunset lights" {
		t.Errorf("Alias = %q, want %q", got.Alias, "Sunset lights")
	}
	if !strings.HasPrefix(got.YAML, "id: "+wantID+"\n") {
		t.Errorf("YAML does not start with the id:\n%s", got.YAML)
	}

	m := decode(t, got.YAML)
	for _, singular := range []string{"trigger", "condition", "action"} {
		if _, ok := m[singular]; ok {
			t.Errorf("key %q still present", singular)
		}
		if _, ok := m[singular+"s"]; !ok {
			t.Errorf("key %q missing", singular+"s")
		}
	}

	triggers, ok := m["triggers"].([]any)
	if !ok || len(triggers) != 1 {
		t.Fatalf("triggers = %#v, want a one-item list", m["triggers"])
	}
	if id := triggers[0].(map[string]any)["id"]; id != "sun_1" {
		t.Errorf("trigger id = %v, want sun_1", id)
	}

	// Quoted scalars keep their type.
	cond := m["conditions"].([]any)[0].(map[string]any)
	if cond["state"] != "off" {
		t.Errorf("condition state = %#v, want \"off\"", cond["state"])
	}
}

func TestNormalize_KeepsExistingID(t *testing.T) {
	got, err := Normalize("id: my_automation\nalias: Mine\n", NormalizeOptions{Now: testNow})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.ID != "my_automation" {
		t.Errorf("ID = %q, want my_automation", got.ID)
	}
	if strings.Count(got.YAML, "id:") != 1 {
		t.Errorf("expected a single id key:\n%s", got.YAML)
	}
}

func TestNormalize_PluralAlreadyPresent(t *testing.T) {
	in := "id: a\ntriggers: []\ntrigger: leftover\n"
	got, err := Normalize(in, NormalizeOptions{Now: testNow})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	m := decode(t, got.YAML)
	if m["trigger"] != "leftover" {
		t.Errorf("singular key should be left alone when plural exists: %#v", m)
	}
}

func TestNormalize_TriggerIDs(t *testing.T) {
	in := `id: a
triggers:
  - platform: state
    entity_id: binary_sensor.Front-Door
  - trigger: state
    entity_id:
      - light.kitchen
      - light.hall
  - platform: time
    at: "07:00:00"
  - id: Motion Detected!
    platform: state
    entity_id: binary_sensor.motion
  - type: turned_on
actions: []
`
	got, err := Normalize(in, NormalizeOptions{Now: testNow})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	m := decode(t, got.YAML)
	triggers := m["triggers"].([]any)

	want := []string{
		"state_front_door",
		"state_kitchen",
		"time_3",
		"motion_detected_",
		"turned_on_5",
	}
	if len(triggers) != len(want) {
		t.Fatalf("len(triggers) = %d, want %d", len(triggers), len(want))
	}
	for i, w := range want {
		if id := triggers[i].(map[string]any)["id"]; id != w {
			t.Errorf("triggers[%d].id = %v, want %q", i, id, w)
		}
	}
}

func TestNormalize_WrapsActionsInChoose(t *testing.T) {
	in := `id: a
triggers:
  - id: morning
    platform: time
    at: "07:00:00"
  - id: evening
    platform: time
    at: "19:00:00"
actions:
  - service: light.toggle
    entity_id: light.hall
`
	got, err := Normalize(in, NormalizeOptions{Now: testNow, UseChoose: true})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	m := decode(t, got.YAML)
	actions := m["actions"].([]any)
	if len(actions) != 1 {
		t.Fatalf("len(actions) = %d, want 1", len(actions))
	}
	options := actions[0].(map[string]any)["choose"].([]any)
	if len(options) != 2 {
		t.Fatalf("len(choose) = %d, want 2", len(options))
	}

	wantSequence := []any{map[string]any{"service": "light.toggle", "entity_id": "light.hall"}}
	for i, tid := range []string{"morning", "evening"} {
		opt := options[i].(map[string]any)
		wantCond := []any{map[string]any{"condition": "trigger", "id": tid}}
		if !reflect.DeepEqual(opt["conditions"], wantCond) {
			t.Errorf("option %d conditions = %#v, want %#v", i, opt["conditions"], wantCond)
		}
		if !reflect.DeepEqual(opt["sequence"], wantSequence) {
			t.Errorf("option %d sequence = %#v, want %#v", i, opt["sequence"], wantSequence)
		}
	}
}

func TestNormalize_ChooseLeftAlone(t *testing.T) {
	in := `id: a
triggers:
  - id: t1
    platform: sun
actions:
  - choose:
      - conditions: []
        sequence: []
`
	got, err := Normalize(in, NormalizeOptions{Now: testNow, UseChoose: true})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	m := decode(t, got.YAML)
	opts := m["actions"].([]any)[0].(map[string]any)["choose"].([]any)
	if len(opts) != 1 {
		t.Errorf("existing choose was rewritten: %#v", m["actions"])
	}
}

func TestNormalize_ChooseDisabled(t *testing.T) {
	in := "id: a\ntriggers:\n  - platform: sun\nactions:\n  - service: light.turn_on\n"
	got, err := Normalize(in, NormalizeOptions{Now: testNow})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if strings.Contains(got.YAML, "choose") {
		t.Errorf("choose added with UseChoose unset:\n%s", got.YAML)
	}
}

func TestNormalize_UnwrapsSingleItemList(t *testing.T) {
	in := "- id: listed\n  alias: Listed\n  trigger:\n    - platform: sun\n"
	got, err := Normalize(in, NormalizeOptions{Now: testNow})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.ID != "listed" {
		t.Errorf("ID = %q, want listed", got.ID)
	}
	if strings.HasPrefix(got.YAML, "-") {
		t.Errorf("output still a list:\n%s", got.YAML)
	}
}

func TestNormalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"scalar", "I could not create that automation."},
		{"two item list", "- id: a\n- id: b\n"},
		{"malformed", "id: [unclosed\n"},
		{"list of scalars", "- a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.in, NormalizeOptions{Now: testNow})
			if !errors.Is(err, ErrInvalidYAML) {
				t.Errorf("Normalize() error = %v, want ErrInvalidYAML", err)
			}
		})
	}
}

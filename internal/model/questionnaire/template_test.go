package questionnaire

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSeedTemplatesAreValid(t *testing.T) {
	for _, tpl := range Seed() {
		tpl := tpl
		if err := tpl.Validate(); err != nil {
			t.Errorf("seed template %s: %v", tpl.ID, err)
		}
	}
}

func TestSeedSurvivesYAMLRoundTrip(t *testing.T) {
	for _, tpl := range Seed() {
		raw, err := yaml.Marshal(tpl)
		if err != nil {
			t.Fatalf("marshal %s: %v", tpl.ID, err)
		}
		var decoded Template
		if err := yaml.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("unmarshal %s: %v", tpl.ID, err)
		}
		if !reflect.DeepEqual(tpl, decoded) {
			t.Errorf("template %s changed across YAML round trip:\nbefore %+v\nafter  %+v", tpl.ID, tpl, decoded)
		}
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	for _, tpl := range Seed() {
		raw, err := yaml.Marshal(tpl)
		if err != nil {
			t.Fatalf("marshal %s: %v", tpl.ID, err)
		}
		if err := os.WriteFile(filepath.Join(dir, tpl.ID+".yaml"), raw, 0o644); err != nil {
			t.Fatalf("write %s: %v", tpl.ID, err)
		}
	}

	loaded, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(loaded) != len(Seed()) {
		t.Fatalf("loaded %d templates, want %d", len(loaded), len(Seed()))
	}
	if !reflect.DeepEqual(loaded, Seed()) {
		t.Errorf("loaded templates differ from seed")
	}
}

func TestLoadDirRejectsInvalidTemplate(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("id: broken\nquestions: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDir(dir); err == nil {
		t.Fatal("expected error for template with no questions")
	}
}

func TestLoadDirRejectsEmptyDir(t *testing.T) {
	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Fatal("expected error for directory without templates")
	}
}

func TestFindByConditionFallsBackToGeneral(t *testing.T) {
	store := NewMemoryStore(Seed())

	tpl, ok := store.FindByCondition("general")
	if !ok || tpl.Condition != "general" {
		t.Fatalf("FindByCondition(general) = %v, %t", tpl.ID, ok)
	}

	tpl, ok = store.FindByCondition("copd")
	if !ok || tpl.Condition != "general" {
		t.Fatalf("unknown condition should fall back to general, got %v, %t", tpl.ID, ok)
	}
}

func TestQuestionByIDCoversFollowUps(t *testing.T) {
	tpl := Seed()[0]

	if _, ok := tpl.QuestionByID("pain_level"); !ok {
		t.Error("base question pain_level not found")
	}
	if _, ok := tpl.QuestionByID("pain_location"); !ok {
		t.Error("follow-up question pain_location not found")
	}
	if _, ok := tpl.QuestionByID("nope"); ok {
		t.Error("unknown id should not resolve")
	}
}

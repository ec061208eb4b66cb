package models

import (
	"testing"
)

func TestKnowledgeSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *KnowledgeSearchQuery
		wantErr bool
	}{
		{"empty query", &KnowledgeSearchQuery{Query: ""}, true},
		{"valid query", &KnowledgeSearchQuery{Query: "becas"}, false},
		{"sets default limit", &KnowledgeSearchQuery{Query: "x", Limit: 0}, false},
		{"caps limit at 100", &KnowledgeSearchQuery{Query: "x", Limit: 200}, false},
		{"known category", &KnowledgeSearchQuery{Query: "x", Category: "Costs"}, false},
		{"unknown category", &KnowledgeSearchQuery{Query: "x", Category: "sports"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if tt.query.Limit == 0 {
					t.Error("expected default limit to be set")
				}
				if tt.query.Limit > 100 {
					t.Errorf("expected limit capped at 100, got %d", tt.query.Limit)
				}
			}
		})
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"", CategoryGeneral, false},
		{"programs", CategoryPrograms, false},
		{" ADMISSIONS ", CategoryAdmissions, false},
		{"schedule", CategorySchedule, false},
		{"library", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCategoriesPriorityOrder(t *testing.T) {
	want := []Category{"programs", "admissions", "contact", "costs", "schedule", "general"}
	got := Categories()
	if len(got) != len(want) {
		t.Fatalf("Categories() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Categories()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConversationStateAppend(t *testing.T) {
	base := ConversationState{ConversationID: "c1", Turns: []Message{{Role: RoleUser, Content: "hola"}}}
	next := base.Append(Message{Role: RoleAssistant, Content: "¡Hola!"})
	if len(base.Turns) != 1 {
		t.Errorf("Append modified the receiver: %d turns", len(base.Turns))
	}
	if len(next.Turns) != 2 || next.ConversationID != "c1" {
		t.Errorf("Append() = %+v", next)
	}
}

func TestPatternKey(t *testing.T) {
	if got := PatternKey(map[string]string{"keyword": "becas"}); got != `{"keyword":"becas"}` {
		t.Errorf("PatternKey = %s", got)
	}
	a := PatternKey(map[string]string{"a": "1", "b": "2"})
	b := PatternKey(map[string]string{"b": "2", "a": "1"})
	if a != b {
		t.Errorf("PatternKey not canonical: %s vs %s", a, b)
	}
	if PatternKey(nil) != "{}" {
		t.Error("PatternKey(nil) should be {}")
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/campusbot/internal/config"
	"github.com/hyperjump/campusbot/internal/generation"
	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/internal/resolver"
	"github.com/hyperjump/campusbot/internal/telemetry"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after message are moved first",
			args:     []string{"cuánto cuesta", "-output", "json"},
			expected: []string{"-output", "json", "cuánto cuesta"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-output", "json", "cuánto cuesta"},
			expected: []string{"-output", "json", "cuánto cuesta"},
		},
		{
			name:     "message only returns unchanged",
			args:     []string{"cuánto cuesta"},
			expected: []string{"cuánto cuesta"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"horario", "biblioteca", "-limit", "5"},
			expected: []string{"-limit", "5", "horario", "biblioteca"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"becas"}, "becas"},
		{"multiple words", []string{"requisitos", "de", "admisión"}, "requisitos de admisión"},
		{"single quoted phrase", []string{"requisitos de admisión"}, "requisitos de admisión"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := joinArgs(tt.args)
			if got != tt.expected {
				t.Errorf("joinArgs(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestSplitKeywords(t *testing.T) {
	got := splitKeywords(" becas, costos ,,matrícula ")
	want := []string{"becas", "costos", "matrícula"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitKeywords() = %v, want %v", got, want)
	}
	if got := splitKeywords(""); got != nil {
		t.Errorf("splitKeywords(\"\") = %v, want nil", got)
	}
}

func TestBuildFilter(t *testing.T) {
	filter, err := buildFilter("Costs", "false", true)
	if err != nil {
		t.Fatal(err)
	}
	if filter.Category == nil || *filter.Category != models.CategoryCosts {
		t.Errorf("category = %v, want costs", filter.Category)
	}
	if filter.Active == nil || *filter.Active {
		t.Errorf("active = %v, want false", filter.Active)
	}
	if filter.Provenance == nil || *filter.Provenance != models.ProvenanceLearned {
		t.Errorf("provenance = %v, want learned", filter.Provenance)
	}

	empty, err := buildFilter("", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Category != nil || empty.Active != nil || empty.Provenance != nil {
		t.Errorf("empty filter = %+v, want no constraints", empty)
	}

	if _, err := buildFilter("sports", "", false); err == nil {
		t.Error("expected error for unknown category")
	}
	if _, err := buildFilter("", "maybe", false); err == nil {
		t.Error("expected error for invalid active value")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_rejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
generation:
  provider: "openai"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := loadConfig(configPath); err == nil {
		t.Error("expected error for unknown generation provider")
	}
}

func TestDiskPaths(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{
		Driver:         config.DriverSQLite,
		DatabasePath:   "/data/campusbot.db",
		BleveIndexPath: "/data/knowledge.bleve",
	}}
	got := diskPaths(cfg)
	if len(got) < 2 || got[0] != "/data/campusbot.db" || got[len(got)-1] != "/data/knowledge.bleve" {
		t.Errorf("diskPaths(sqlite) = %v", got)
	}

	cfg.Storage.Driver = config.DriverPostgres
	got = diskPaths(cfg)
	if !reflect.DeepEqual(got, []string{"/data/knowledge.bleve"}) {
		t.Errorf("diskPaths(postgres) = %v", got)
	}
}

func TestChatViaHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/chat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Message != "hola" || req.ConversationID != "c1" {
			t.Errorf("unexpected request body: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(chatResponse{
			ConversationID: "c1",
			Content:        "¡Hola!",
			Confidence:     0.9,
			Source:         resolver.SourceKnowledgeBase,
			Intent:         models.CategoryGeneral,
			KnowledgeID:    "k1",
			LatencyMs:      12,
		})
	}))
	defer srv.Close()

	resp, err := chatViaHTTP(srv.URL, chatRequest{ConversationID: "c1", Message: "hola"})
	if err != nil {
		t.Fatal(err)
	}
	res := resp.result()
	if res.Content != "¡Hola!" || res.KnowledgeID != "k1" || res.State.ConversationID != "c1" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Latency.Milliseconds() != 12 {
		t.Errorf("latency = %v, want 12ms", res.Latency)
	}
}

func TestAPIRequest_statusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"message is required","kind":"validation"}`))
	}))
	defer srv.Close()

	err := apiRequest(http.MethodPost, srv.URL+"/api/v1/chat", chatRequest{}, http.StatusOK, nil)
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if want := "server returned 400"; !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want it to contain %q", err, want)
	}
}

func TestSearchViaHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "becas" || q.Get("limit") != "3" || q.Get("fuzzy") != "true" || q.Get("category") != "costs" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(models.KnowledgeSearchResponse{Query: "becas", Total: 1,
			Results: []*models.KnowledgeSearchResult{{Entry: &models.KnowledgeEntry{ID: "k1"}, Score: 1, Rank: 1}}})
	}))
	defer srv.Close()

	resp, err := searchViaHTTP(srv.URL, models.KnowledgeSearchQuery{Query: "becas", Limit: 3, Fuzzy: true, Category: "costs"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Entry.ID != "k1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Generate(ctx context.Context, turns []generation.Turn, params generation.Params) (string, error) {
	return g.reply, g.err
}

func testComponents(t *testing.T, gen generation.Generator) (*config.Config, *Components) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{Storage: config.StorageConfig{
		DatabasePath:   filepath.Join(dir, "campusbot.db"),
		BleveIndexPath: filepath.Join(dir, "knowledge.bleve"),
	}}
	config.ApplyDefaults(cfg)

	c, err := initializeComponents(cfg, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	if c.Resolver != nil || c.Generator != nil {
		t.Fatal("generation components should not be built without generation")
	}
	c.Resolver = resolver.New(c.Storage, gen,
		resolver.WithTracker(c.Tracker),
		resolver.WithLearner(c.Knowledge),
	)
	return cfg, c
}

func TestAskDirect_knowledgeBase(t *testing.T) {
	cfg, c := testComponents(t, &stubGenerator{err: errors.New("should not be called")})
	ctx := context.Background()

	id, err := c.Knowledge.Add(ctx, models.KnowledgeInput{
		Question: "¿Cuáles son los requisitos de admisión?",
		Answer:   "Certificado de bachillerato y examen de ingreso.",
		Category: "admissions",
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := askDirect(ctx, cfg, c, "", "¿Cuáles son los requisitos de admisión?")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != resolver.SourceKnowledgeBase || res.KnowledgeID != id {
		t.Errorf("source = %s, knowledge = %s; want knowledge_base, %s", res.Source, res.KnowledgeID, id)
	}

	msgs, err := c.Recorder.Messages(ctx, res.State.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}

	// Continuing the conversation appends to it.
	res2, err := askDirect(ctx, cfg, c, res.State.ConversationID, "¿Cuáles son los requisitos de admisión?")
	if err != nil {
		t.Fatal(err)
	}
	if res2.State.ConversationID != res.State.ConversationID {
		t.Errorf("conversation = %s, want %s", res2.State.ConversationID, res.State.ConversationID)
	}
	msgs, _ = c.Recorder.Messages(ctx, res.State.ConversationID)
	if len(msgs) != 4 {
		t.Errorf("messages = %d, want 4", len(msgs))
	}
}

func TestAskDirect_generationFailureFallsBack(t *testing.T) {
	cfg, c := testComponents(t, &stubGenerator{err: errors.New("upstream unavailable")})
	ctx := context.Background()

	res, err := askDirect(ctx, cfg, c, "", "¿Cuánto cuesta la colegiatura?")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != telemetry.SourceFallback || res.Content != cfg.Assistant.FallbackMessage {
		t.Errorf("unexpected fallback result: %+v", res)
	}
	msgs, err := c.Recorder.Messages(ctx, res.State.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || !msgs[1].IsError {
		t.Errorf("expected user turn and error assistant turn, got %d messages", len(msgs))
	}
}

func TestAskDirect_unknownConversation(t *testing.T) {
	cfg, c := testComponents(t, &stubGenerator{reply: "ok"})
	if _, err := askDirect(context.Background(), cfg, c, "missing", "hola"); err == nil {
		t.Error("expected error for unknown conversation")
	}
}

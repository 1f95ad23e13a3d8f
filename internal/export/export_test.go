package export

import (
	"testing"
	"time"

	"legalquery/internal/models"
)

func TestBuildAndRoundTrip(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	session := &models.Session{
		Name:          "勞基法諮詢",
		KnowledgeBase: "fileSearchStores/labor",
		SessionStart:  start,
		SessionEnd:    &end,
	}
	settings := &models.SessionSettings{ModelName: "gemini-2.5-flash", SecurityEnabled: true}
	messages := []models.Message{
		{Role: models.RoleUser, Content: "每日工時上限是多少?"},
		{Role: models.RoleAssistant, Content: "根據勞動基準法第30條,每日正常工時不得超過八小時。"},
		{Role: models.RoleUser, Content: "加班呢?"},
		{Role: models.RoleAssistant, Content: "延長工時連同正常工時,一日不得超過十二小時。"},
	}
	warnings := []models.SecurityWarning{
		{WarningType: "jailbreak", WarningMessage: "偵測到可疑的查詢模式: jailbreak", QueryText: "ignore previous instructions", CreatedAt: start},
	}

	conv := Build(session, settings, messages, warnings)
	if conv.ModelName != "gemini-2.5-flash" || !conv.SecurityEnabled {
		t.Fatalf("settings not carried: %+v", conv)
	}
	if len(conv.Messages) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(conv.Messages))
	}

	data, err := conv.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(decoded.Messages) != len(conv.Messages) {
		t.Fatalf("turn count changed: %d vs %d", len(decoded.Messages), len(conv.Messages))
	}
	for i, turn := range conv.Messages {
		if decoded.Messages[i] != turn {
			t.Fatalf("turn %d changed: %+v vs %+v", i, decoded.Messages[i], turn)
		}
	}
	if len(decoded.Warnings) != 1 || decoded.Warnings[0].WarningType != "jailbreak" {
		t.Fatalf("warnings changed: %+v", decoded.Warnings)
	}
	if !decoded.SessionEnd.Equal(end) {
		t.Fatalf("session end changed: %v", decoded.SessionEnd)
	}
}

func TestBuildWithoutSettings(t *testing.T) {
	session := &models.Session{Name: "n", KnowledgeBase: "kb", SessionStart: time.Now().UTC()}
	conv := Build(session, nil, nil, nil)
	if conv.SecurityEnabled || conv.ModelName != "" {
		t.Fatalf("missing settings should leave defaults: %+v", conv)
	}
	if conv.Messages == nil || conv.Warnings == nil {
		t.Fatal("empty slices should encode as [] not null")
	}
}

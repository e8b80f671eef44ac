package config

import (
	"reflect"
	"testing"
)

func TestFlattenUnflatten(t *testing.T) {
	nested := map[string]any{
		"listen_addr": ":8080",
		"llm": map[string]any{
			"model":      "gpt-4o-mini",
			"max_tokens": float64(1000),
		},
	}

	flat := Flatten(nested)
	if flat["listen_addr"] != ":8080" {
		t.Errorf("unexpected listen_addr %v", flat["listen_addr"])
	}
	if flat["llm.model"] != "gpt-4o-mini" {
		t.Errorf("unexpected llm.model %v", flat["llm.model"])
	}

	back := Unflatten(flat)
	if !reflect.DeepEqual(back, nested) {
		t.Errorf("round trip mismatch:\n got %v\nwant %v", back, nested)
	}
}

func TestIsSecretKey(t *testing.T) {
	for _, key := range []string{"llm.api_key", "instagram.access_token", "instagram.verify_token", "telegram.token"} {
		if !IsSecretKey(key) {
			t.Errorf("%s should be secret", key)
		}
	}
	if IsSecretKey("llm.model") {
		t.Error("llm.model should not be secret")
	}
}

func TestMaskSecrets(t *testing.T) {
	flat := map[string]any{
		"llm.api_key":    "sk-verylongkey-wxyz",
		"telegram.token": "abc",
		"llm.model":      "gpt-4o-mini",
	}

	masked := MaskSecrets(flat)
	if masked["llm.api_key"] != "***wxyz" {
		t.Errorf("long secret: got %v", masked["llm.api_key"])
	}
	if masked["telegram.token"] != "***abc" {
		t.Errorf("short secret: got %v", masked["telegram.token"])
	}
	if masked["llm.model"] != "gpt-4o-mini" {
		t.Errorf("non-secret touched: %v", masked["llm.model"])
	}
}

func TestMaskSecrets_EmptyValueUntouched(t *testing.T) {
	masked := MaskSecrets(map[string]any{"llm.api_key": ""})
	if masked["llm.api_key"] != "" {
		t.Errorf("empty secret should stay empty, got %v", masked["llm.api_key"])
	}
}

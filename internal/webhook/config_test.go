package webhook

import (
	"testing"

	"github.com/mattjoyce/cmdgate/internal/config"
)

func TestParseMaxBodySize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", DefaultMaxBodySize, false},
		{"512", 512, false},
		{"64KB", 64 << 10, false},
		{"2mb", 2 << 20, false},
		{" 1 MB ", 1 << 20, false},
		{"0", 0, true},
		{"-5KB", 0, true},
		{"lots", 0, true},
	}
	for _, tt := range tests {
		got, err := parseMaxBodySize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMaxBodySize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseMaxBodySize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFromConfig(t *testing.T) {
	cfg, err := FromConfig(&config.WebhooksConfig{
		Listen: "127.0.0.1:9090",
		Endpoints: []config.WebhookEndpoint{{
			Path:            "/hooks/chat",
			Actor:           "bridge",
			Secret:          "s3cret",
			SignatureHeader: "X-Signature-256",
			MaxBodySize:     "8KB",
			Commands:        []string{"echo"},
		}},
	}, "de-DE")
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9090" || cfg.Locale != "de-DE" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Endpoints) != 1 {
		t.Fatalf("endpoints = %d, want 1", len(cfg.Endpoints))
	}
	ep := cfg.Endpoints[0]
	if ep.MaxBodySize != 8<<10 || ep.Actor != "bridge" || len(ep.Commands) != 1 {
		t.Errorf("endpoint = %+v", ep)
	}

	if _, err := FromConfig(nil, ""); err == nil {
		t.Error("FromConfig(nil) should fail")
	}
	if _, err := FromConfig(&config.WebhooksConfig{Endpoints: []config.WebhookEndpoint{{Path: "/x", MaxBodySize: "big"}}}, ""); err == nil {
		t.Error("invalid size should fail")
	}
}

package main

import (
	"testing"
	"time"
)

func TestConfigValidate_OK(t *testing.T) {
	c := &appConfig{
		slcanDev:     "/dev/null",
		baud:         115200,
		listenAddr:   ":20000",
		slcanReadTO:  10 * time.Millisecond,
		logFormat:    "text",
		logLevel:     "info",
		hubBuffer:    8,
		hubPolicy:    "drop",
		backend:      "slcan",
		canIf:        "can0",
		maxClients:   0,
		handshakeTO:  time.Second,
		clientReadTO: time.Second,
	}
	if err := c.validate(); err != nil {
		t.Fatalf("expected ok got %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
		{"badLevel", func(c *appConfig) { c.logLevel = "nope" }},
		{"badBackend", func(c *appConfig) { c.backend = "x" }},
		{"badPolicy", func(c *appConfig) { c.hubPolicy = "x" }},
		{"badHubBuf", func(c *appConfig) { c.hubBuffer = 0 }},
		{"badBaud", func(c *appConfig) { c.baud = 0 }},
		{"badSlcanTO", func(c *appConfig) { c.slcanReadTO = 0 }},
		{"badHandshakeTO", func(c *appConfig) { c.handshakeTO = 0 }},
		{"badClientReadTO", func(c *appConfig) { c.clientReadTO = 0 }},
		{"badMaxClients", func(c *appConfig) { c.maxClients = -1 }},
	}
	for _, tc := range tests {
		base := &appConfig{
			slcanDev: "/dev/null", baud: 115200, listenAddr: ":20000", slcanReadTO: 10 * time.Millisecond,
			logFormat: "text", logLevel: "info", hubBuffer: 8, hubPolicy: "drop", backend: "slcan", canIf: "can0",
			maxClients: 0, handshakeTO: time.Second, clientReadTO: time.Second,
		}
		tc.mod(base)
		if err := base.validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestParseFilterSpec(t *testing.T) {
	filters, err := parseFilterSpec("0x123, 0x100/0x700, ~0x200")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(filters) != 3 {
		t.Fatalf("expected 3 filters, got %d", len(filters))
	}
	if !filters[2].IsInverted() {
		t.Fatalf("expected third filter inverted")
	}
	if _, err := parseFilterSpec("0x123,bogus"); err == nil {
		t.Fatalf("expected error for bad entry")
	}
	if filters, err := parseFilterSpec("  "); err != nil || filters != nil {
		t.Fatalf("expected empty spec to yield nil, got %v / %v", filters, err)
	}
}

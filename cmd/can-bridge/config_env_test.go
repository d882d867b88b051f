package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := &appConfig{
		slcanDev:        "/dev/null",
		baud:            115200,
		listenAddr:      ":20000",
		slcanReadTO:     50 * time.Millisecond,
		logFormat:       "text",
		logLevel:        "info",
		metricsAddr:     "",
		hubBuffer:       512,
		hubPolicy:       "drop",
		backend:         "socketcan",
		canIf:           "can0",
		maxClients:      0,
		handshakeTO:     3 * time.Second,
		clientReadTO:    60 * time.Second,
		logMetricsEvery: 0,
		mdnsEnable:      false,
		mdnsName:        "",
	}

	// Set env overrides
	os.Setenv("CAN_BRIDGE_BAUD", "230400")
	os.Setenv("CAN_BRIDGE_MDNS_ENABLE", "true")
	os.Setenv("CAN_BRIDGE_SLCAN_READ_TIMEOUT", "100ms")
	os.Setenv("CAN_BRIDGE_LOG_METRICS_INTERVAL", "5s")
	os.Setenv("CAN_BRIDGE_FILTER", "0x123,0x100/0x700")
	t.Cleanup(func() {
		os.Unsetenv("CAN_BRIDGE_BAUD")
		os.Unsetenv("CAN_BRIDGE_MDNS_ENABLE")
		os.Unsetenv("CAN_BRIDGE_SLCAN_READ_TIMEOUT")
		os.Unsetenv("CAN_BRIDGE_LOG_METRICS_INTERVAL")
		os.Unsetenv("CAN_BRIDGE_FILTER")
	})
	var filterSpec string
	if err := applyEnvOverrides(base, map[string]struct{}{}, &filterSpec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.baud != 230400 {
		t.Fatalf("expected baud override, got %d", base.baud)
	}
	if !base.mdnsEnable {
		t.Fatalf("expected mdnsEnable true")
	}
	if base.slcanReadTO != 100*time.Millisecond {
		t.Fatalf("expected slcanReadTO 100ms got %v", base.slcanReadTO)
	}
	if base.logMetricsEvery != 5*time.Second {
		t.Fatalf("expected logMetricsEvery 5s got %v", base.logMetricsEvery)
	}
	if filterSpec != "0x123,0x100/0x700" {
		t.Fatalf("expected filter spec override, got %q", filterSpec)
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := &appConfig{baud: 115200}
	os.Setenv("CAN_BRIDGE_BAUD", "230400")
	t.Cleanup(func() { os.Unsetenv("CAN_BRIDGE_BAUD") })
	var filterSpec string
	// Simulate user passed -baud flag (so env should be ignored)
	if err := applyEnvOverrides(base, map[string]struct{}{"baud": {}}, &filterSpec); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.baud != 115200 {
		t.Fatalf("expected baud unchanged 115200 got %d", base.baud)
	}
}

func TestApplyEnvOverrides_BadInt(t *testing.T) {
	base := &appConfig{hubBuffer: 512}
	os.Setenv("CAN_BRIDGE_HUB_BUFFER", "notint")
	t.Cleanup(func() { os.Unsetenv("CAN_BRIDGE_HUB_BUFFER") })
	var filterSpec string
	if err := applyEnvOverrides(base, map[string]struct{}{}, &filterSpec); err == nil {
		t.Fatalf("expected error for bad integer")
	}
}

package db

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestCheckDependencies(t *testing.T) {
	deps := map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return nil }),
		"mongo": nil,
	}
	checks, healthy := CheckDependencies(context.Background(), deps)
	if !healthy {
		t.Error("expected healthy")
	}
	if checks["redis"] != "ok" {
		t.Errorf("expected redis ok, got %q", checks["redis"])
	}
	if checks["mongo"] != "disabled" {
		t.Errorf("expected mongo disabled, got %q", checks["mongo"])
	}
}

func TestCheckDependencies_Failure(t *testing.T) {
	deps := map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}
	checks, healthy := CheckDependencies(context.Background(), deps)
	if healthy {
		t.Error("expected unhealthy")
	}
	if checks["redis"] != "connection refused" {
		t.Errorf("unexpected check message %q", checks["redis"])
	}
}

func TestPoolStats_JSONTags(t *testing.T) {
	stats := &PoolStats{TotalConns: 3, MaxConns: 20, AcquireDuration: "1s", Healthy: true}
	b, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"total_conns":3`, `"max_conns":20`, `"acquire_duration":"1s"`, `"healthy":true`} {
		if !strings.Contains(string(b), key) {
			t.Errorf("expected %s in %s", key, b)
		}
	}
}

package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DatabaseURL:           "postgres://localhost:5432/autopilot",
		TickIntervalStr:       "1m",
		QueueCheckIntervalStr: "1h",
		CollabTimeoutStr:      "30s",
		CollabTimeout:         30 * time.Second,
		ReconcileEnabled:      true,
		ReconcileIntervalStr:  "5m",
		ReconcileThresholdStr: "30m",
		ReconcileThreshold:    30 * time.Minute,
	}
}

func TestValidate_OK(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_MissingDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate: want error")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error = %q, want DATABASE_URL mention", err)
	}
}

func TestValidate_BadDurations(t *testing.T) {
	cfg := validConfig()
	cfg.TickIntervalStr = "often"
	cfg.QueueCheckIntervalStr = "-1h"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate: want error")
	}

	var errs ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("error type = %T, want ValidationErrors", err)
	}
	if len(errs) != 2 {
		t.Errorf("errors = %d (%v), want 2", len(errs), errs)
	}
}

func TestValidate_ReconcileThresholdMustExceedCollabTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.ReconcileThresholdStr = "10s"
	cfg.ReconcileThreshold = 10 * time.Second

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate: want error")
	}
	if !strings.Contains(err.Error(), "RECONCILE_THRESHOLD") {
		t.Errorf("error = %q, want RECONCILE_THRESHOLD mention", err)
	}
}

func TestValidationErrors_MultiFormat(t *testing.T) {
	errs := ValidationErrors{
		{Field: "A", Message: "bad"},
		{Field: "B", Message: "worse"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("message = %q", msg)
	}
	if !strings.Contains(msg, "A: bad") || !strings.Contains(msg, "B: worse") {
		t.Errorf("message = %q, want both fields listed", msg)
	}
}

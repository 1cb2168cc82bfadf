package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_JSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("debug", "json", &buf)
	if l.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %v", l.GetLevel())
	}

	l.WithField("account", "0xabc").Info("collateral fetched")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not json: %v (%s)", err, buf.String())
	}
	if line["account"] != "0xabc" || line["msg"] != "collateral fetched" {
		t.Fatalf("unexpected entry: %v", line)
	}
}

func TestNew_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("loud", "text", &buf)
	if l.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %v", l.GetLevel())
	}
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered: %q", buf.String())
	}
}

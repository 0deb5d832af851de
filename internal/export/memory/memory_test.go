package memory

import (
	"context"
	"testing"

	"pfm/internal/core"
	"pfm/internal/report"
)

func TestExportBundle(t *testing.T) {
	s := New()
	if s.Last() != nil || s.Count() != 0 {
		t.Fatal("new store should be empty")
	}

	b := &report.Bundle{
		YearEndSummary: core.YearSummary{Year: 2024, NetSavings: core.MustMoney("-105.00")},
	}
	ref, err := s.ExportBundle(context.Background(), "u1", 2024, b)
	if err != nil {
		t.Fatal(err)
	}
	if ref != "mem:1" {
		t.Errorf("ref = %q, want mem:1", ref)
	}
	if s.Count() != 1 || s.Last() != b {
		t.Error("bundle should be recorded")
	}
}

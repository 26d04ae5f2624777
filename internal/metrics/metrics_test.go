package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestObservationRecordsCounterAndBytes(t *testing.T) {
	t.Parallel()

	m := New()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatal(err)
	}

	obs := m.Start("tag", "2.0", "object", "2.0")
	obs.Done("completed", 1024)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, fam := range families {
		if fam.GetName() != "epcisconv_bytes_processed_total" {
			continue
		}
		for _, metric := range fam.Metric {
			if metric.GetCounter().GetValue() == 1024 {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected a bytes_processed_total counter of 1024, got %v", dumpFamilies(families))
	}
}

func dumpFamilies(families []*dto.MetricFamily) []string {
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	return names
}
